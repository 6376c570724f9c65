package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/go-activity-scraper/internal/config"
	"github.com/tbourn/go-activity-scraper/internal/transport"
)

func newGaiaForTest(t *testing.T, handler http.Handler) *Gaia {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.GaiaConfig{
		BaseURL:  srv.URL,
		Catalogs: []string{"E", "L"},
		PageSize: 20,
	}
	client := transport.New(transport.Options{
		BaseURL: srv.URL,
		Headers: GaiaHeaders,
		Timeout: 2 * time.Second,
	})
	return NewGaia(cfg, client)
}

func TestGaia_Categories(t *testing.T) {
	g := NewGaia(config.GaiaConfig{Catalogs: []string{"E", "SW"}}, nil)
	cats := g.Categories()
	if len(cats) != 2 || cats[0].ID != "E" || cats[0].Tag != "E" || cats[1].ID != "SW" {
		t.Fatalf("categories: %+v", cats)
	}
	if g.FirstPage() != 1 {
		t.Fatalf("FirstPage = %d", g.FirstPage())
	}
}

func TestGaia_ListPage_QueryAndParsing(t *testing.T) {
	var query map[string]string
	g := newGaiaForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sku-wide" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		query = map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"data":{
			"page":[{"originalId":"s1"},{"originalId":777}],
			"pagination":{"totalPage":4}
		}}`))
	}))

	res, err := g.ListPage(context.Background(), Category{ID: "E", Tag: "E"}, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !res.OK || res.TotalPages != 4 || res.Total != 0 {
		t.Fatalf("pagination: %+v", res)
	}
	if len(res.Items) != 2 || res.Items[0].DetailID() != "s1" || res.Items[1].DetailID() != "777" {
		t.Fatalf("items: %+v", res.Items)
	}
	if query["catalog"] != "E" || query["packet"] != "forSale" || query["pageScene"] != "page" ||
		query["pageIndex"] != "2" || query["pageSize"] != "20" {
		t.Fatalf("query: %v", query)
	}
}

func TestGaia_ListPage_AppLevelFailure(t *testing.T) {
	g := newGaiaForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":500,"data":{}}`))
	}))

	res, err := g.ListPage(context.Background(), Category{ID: "E", Tag: "E"}, 1)
	if err != nil {
		t.Fatalf("app-level failure must not be a Go error: %v", err)
	}
	if res.OK || res.Code != 500 {
		t.Fatalf("expected OK=false code=500, got %+v", res)
	}
}

func TestGaia_FetchDetail_CombinesBothCalls(t *testing.T) {
	g := newGaiaForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sku/detail":
			if got := r.URL.Query().Get("skuOriginalId"); got != "s1" {
				t.Errorf("detail skuOriginalId = %q", got)
			}
			_, _ = w.Write([]byte(`{"code":0,"data":{"heading":"Reef dive","minPrice":120}}`))
		case "/trip-wide":
			q := r.URL.Query()
			if q.Get("pageScene") != "dayGroup" || q.Get("skuWideId") != "0" || q.Get("skuOriginalId") != "s1" {
				t.Errorf("trip query: %v", q)
			}
			_, _ = w.Write([]byte(`{"code":0,"data":[{"date":"2026-03-01"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	res, err := g.FetchDetail(context.Background(), "s1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected OK, got %+v", res)
	}

	var combined struct {
		Detail struct {
			Heading  string  `json:"heading"`
			MinPrice float64 `json:"minPrice"`
		} `json:"detail"`
		Times []map[string]any `json:"times"`
	}
	if err := json.Unmarshal(res.Payload, &combined); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if combined.Detail.Heading != "Reef dive" || combined.Detail.MinPrice != 120 {
		t.Fatalf("detail half: %+v", combined.Detail)
	}
	if len(combined.Times) != 1 {
		t.Fatalf("times half: %+v", combined.Times)
	}
}

func TestGaia_FetchDetail_SecondHalfFailureDropsWhole(t *testing.T) {
	g := newGaiaForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sku/detail":
			_, _ = w.Write([]byte(`{"code":0,"data":{"heading":"Reef dive"}}`))
		case "/trip-wide":
			_, _ = w.Write([]byte(`{"code":9001,"data":null}`))
		}
	}))

	res, err := g.FetchDetail(context.Background(), "s1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if res.OK || res.Code != 9001 || res.Payload != nil {
		t.Fatalf("expected whole-unit failure with no payload, got %+v", res)
	}
}

func TestGaia_FetchDetail_FirstHalfFailureSkipsSecond(t *testing.T) {
	var tripCalled bool
	g := newGaiaForTest(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/sku/detail":
			_, _ = w.Write([]byte(`{"code":42,"data":null}`))
		case "/trip-wide":
			tripCalled = true
			_, _ = w.Write([]byte(`{"code":0,"data":[]}`))
		}
	}))

	res, err := g.FetchDetail(context.Background(), "s1")
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if res.OK || res.Code != 42 {
		t.Fatalf("expected OK=false code=42, got %+v", res)
	}
	if tripCalled {
		t.Fatalf("trip endpoint should not be called after detail failure")
	}
}
