package platform

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/tbourn/go-activity-scraper/internal/config"
	"github.com/tbourn/go-activity-scraper/internal/domain"
)

// tigaSuccessCode is the application-level success marker inside Tiga's
// response envelope; the HTTP status is 200 even on failures.
const tigaSuccessCode = 200

// TigaHeaders are the default headers the Tiga app API expects on top of the
// shared transport defaults.
var TigaHeaders = map[string]string{
	"Accept": "*/*",
}

// Tiga scrapes the form-encoded app API. Listing pages are 0-based and
// report a total item count; the two categories (domestic, overseas) differ
// in which device fields the listing request carries.
type Tiga struct {
	cfg    config.TigaConfig
	client *resty.Client
}

// NewTiga builds the adapter around an already-configured transport client.
func NewTiga(cfg config.TigaConfig, client *resty.Client) *Tiga {
	return &Tiga{cfg: cfg, client: client}
}

// Name implements Adapter.
func (t *Tiga) Name() string { return domain.PlatformTiga }

// FirstPage implements Adapter. Tiga pages are 0-based.
func (t *Tiga) FirstPage() int { return 0 }

// Categories returns the configured domestic and overseas categories,
// skipping any that are unconfigured.
func (t *Tiga) Categories() []Category {
	var cats []Category
	if t.cfg.DomesticCategoryID != "" {
		cats = append(cats, Category{ID: t.cfg.DomesticCategoryID, Tag: "domestic"})
	}
	if t.cfg.OverseasCategoryID != "" {
		cats = append(cats, Category{ID: t.cfg.OverseasCategoryID, Tag: "overseas", Overseas: true})
	}
	return cats
}

type tigaListEnvelope struct {
	Code int `json:"code"`
	Data struct {
		Items []tigaListItem `json:"items"`
		Total int            `json:"total"`
	} `json:"data"`
}

type tigaListItem struct {
	ID     ID `json:"id"`
	JumpID ID `json:"jump_id"`
}

type tigaDetailEnvelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

// ListPage implements Adapter.
func (t *Tiga) ListPage(ctx context.Context, cat Category, page int) (ListResult, error) {
	form := map[string]string{
		"id":              cat.ID,
		"is_fanti":        "0",
		"page":            itoa(page),
		"platform":        t.cfg.Platform,
		"registration_id": t.cfg.RegistrationID,
		"sys_version":     t.cfg.SysVersion,
		"token":           t.cfg.Token,
		"version":         versionFromUserAgent(t.cfg.UserAgent),
	}
	if cat.Overseas {
		form["channel"] = t.cfg.Channel
		form["city_id"] = t.cfg.CityID
		form["device"] = t.cfg.Device
		form["device_uu_token"] = t.cfg.DeviceUUToken
	}

	var env tigaListEnvelope
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&env).
		Post("/api/v2/list/datas")
	if err != nil {
		return ListResult{}, err
	}
	if !res.IsSuccess() {
		return ListResult{Code: res.StatusCode()}, nil
	}
	if env.Code != tigaSuccessCode {
		return ListResult{Code: env.Code}, nil
	}

	items := make([]Item, 0, len(env.Data.Items))
	for _, it := range env.Data.Items {
		items = append(items, Item{RawID: it.ID, JumpID: it.JumpID})
	}
	return ListResult{
		OK:    true,
		Code:  env.Code,
		Items: items,
		Total: env.Data.Total,
	}, nil
}

// FetchDetail implements Adapter. The persisted payload is the envelope's
// data field, unvalidated.
func (t *Tiga) FetchDetail(ctx context.Context, id string) (DetailResult, error) {
	form := map[string]string{
		"channel": t.cfg.Channel,
		"city_id": t.cfg.CityID,
		// the detail endpoint rejects raw commas in the device field
		"device":          strings.ReplaceAll(t.cfg.Device, ",", "%2C"),
		"device_uu_token": t.cfg.DeviceUUToken,
		"id":              id,
		"is_fanti":        "0",
		"platform":        t.cfg.Platform,
		"registration_id": t.cfg.RegistrationID,
		"sys_version":     t.cfg.SysVersion,
		"token":           t.cfg.Token,
		"type":            "0",
		"version":         versionFromUserAgent(t.cfg.UserAgent),
	}

	var env tigaDetailEnvelope
	res, err := t.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&env).
		Post("/api/v1/activity/detail")
	if err != nil {
		return DetailResult{}, err
	}
	if !res.IsSuccess() {
		return DetailResult{Code: res.StatusCode()}, nil
	}
	if env.Code != tigaSuccessCode {
		return DetailResult{Code: env.Code}, nil
	}

	payload := env.Data
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return DetailResult{OK: true, Code: env.Code, Payload: payload}, nil
}

// versionFromUserAgent extracts the app version the API expects in its
// "version" form field from a user-agent like "tiga/8.3.1 (iPhone; ...)".
// It returns "" when the user-agent carries no version segment.
func versionFromUserAgent(ua string) string {
	_, rest, ok := strings.Cut(ua, "/")
	if !ok {
		return ""
	}
	version, _, _ := strings.Cut(rest, " ")
	return version
}
