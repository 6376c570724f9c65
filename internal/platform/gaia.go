package platform

import (
	"context"
	"encoding/json"

	"github.com/go-resty/resty/v2"

	"github.com/tbourn/go-activity-scraper/internal/config"
	"github.com/tbourn/go-activity-scraper/internal/domain"
)

// gaiaSuccessCode is the application-level success marker inside Gaia's
// response envelope.
const gaiaSuccessCode = 0

// GaiaHeaders are the default headers the Gaia applet gateway expects on top
// of the shared transport defaults.
var GaiaHeaders = map[string]string{
	"Content-Type":     "application/json",
	"X-Requested-With": "XMLHttpRequest",
	"Platform":         "USER_WECHAT_APPLET",
	"Accept-Encoding":  "gzip,compress,br,deflate",
}

// Gaia scrapes the applet gateway API. Listing pages are 1-based and report
// an explicit total page count; detail is composite (static detail plus
// schedule "times") and is only ever persisted whole.
type Gaia struct {
	cfg    config.GaiaConfig
	client *resty.Client
}

// NewGaia builds the adapter around an already-configured transport client.
func NewGaia(cfg config.GaiaConfig, client *resty.Client) *Gaia {
	return &Gaia{cfg: cfg, client: client}
}

// Name implements Adapter.
func (g *Gaia) Name() string { return domain.PlatformGaia }

// FirstPage implements Adapter. Gaia pages are 1-based.
func (g *Gaia) FirstPage() int { return 1 }

// Categories returns one Category per configured catalog code.
func (g *Gaia) Categories() []Category {
	cats := make([]Category, 0, len(g.cfg.Catalogs))
	for _, c := range g.cfg.Catalogs {
		cats = append(cats, Category{ID: c, Tag: c})
	}
	return cats
}

type gaiaListEnvelope struct {
	Code int `json:"code"`
	Data struct {
		Page       []gaiaListItem `json:"page"`
		Pagination struct {
			TotalPage int `json:"totalPage"`
		} `json:"pagination"`
	} `json:"data"`
}

type gaiaListItem struct {
	OriginalID ID `json:"originalId"`
}

type gaiaEnvelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

// ListPage implements Adapter.
func (g *Gaia) ListPage(ctx context.Context, cat Category, page int) (ListResult, error) {
	var env gaiaListEnvelope
	res, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"catalog":   cat.ID,
			"packet":    "forSale",
			"pageScene": "page",
			"pageIndex": itoa(page),
			"pageSize":  itoa(g.cfg.PageSize),
		}).
		SetResult(&env).
		Get("/sku-wide")
	if err != nil {
		return ListResult{}, err
	}
	if !res.IsSuccess() {
		return ListResult{Code: res.StatusCode()}, nil
	}
	if env.Code != gaiaSuccessCode {
		return ListResult{Code: env.Code}, nil
	}

	items := make([]Item, 0, len(env.Data.Page))
	for _, it := range env.Data.Page {
		items = append(items, Item{RawID: it.OriginalID})
	}
	return ListResult{
		OK:         true,
		Code:       env.Code,
		Items:      items,
		TotalPages: env.Data.Pagination.TotalPage,
	}, nil
}

// FetchDetail implements Adapter. It performs both sub-fetches and fails as
// a unit when either does; no partial composite is ever returned.
func (g *Gaia) FetchDetail(ctx context.Context, id string) (DetailResult, error) {
	detail, err := g.fetchEnvelope(ctx, "/sku/detail", map[string]string{
		"skuOriginalId": id,
	})
	if err != nil {
		return DetailResult{}, err
	}
	if !detail.ok {
		return DetailResult{Code: detail.code}, nil
	}

	times, err := g.fetchEnvelope(ctx, "/trip-wide", map[string]string{
		"pageScene":     "dayGroup",
		"skuWideId":     "0",
		"skuOriginalId": id,
	})
	if err != nil {
		return DetailResult{}, err
	}
	if !times.ok {
		return DetailResult{Code: times.code}, nil
	}

	payload, err := json.Marshal(struct {
		Detail json.RawMessage `json:"detail"`
		Times  json.RawMessage `json:"times"`
	}{Detail: detail.data, Times: times.data})
	if err != nil {
		return DetailResult{}, err
	}
	return DetailResult{OK: true, Code: gaiaSuccessCode, Payload: payload}, nil
}

type gaiaFetch struct {
	ok   bool
	code int
	data json.RawMessage
}

func (g *Gaia) fetchEnvelope(ctx context.Context, path string, params map[string]string) (gaiaFetch, error) {
	var env gaiaEnvelope
	res, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&env).
		Get(path)
	if err != nil {
		return gaiaFetch{}, err
	}
	if !res.IsSuccess() {
		return gaiaFetch{code: res.StatusCode()}, nil
	}
	if env.Code != gaiaSuccessCode {
		return gaiaFetch{code: env.Code}, nil
	}
	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return gaiaFetch{ok: true, code: env.Code, data: data}, nil
}
