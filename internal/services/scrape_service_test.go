package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tbourn/go-activity-scraper/internal/domain"
	"github.com/tbourn/go-activity-scraper/internal/platform"
)

type listCall struct {
	cat  string
	page int
}

// fakeAdapter scripts list/detail behavior per test and records every call.
type fakeAdapter struct {
	name      string
	firstPage int
	cats      []platform.Category

	listFn   func(cat platform.Category, page int) (platform.ListResult, error)
	detailFn func(id string) (platform.DetailResult, error)

	listCalls   []listCall
	detailCalls []string
}

func (f *fakeAdapter) Name() string                    { return f.name }
func (f *fakeAdapter) FirstPage() int                  { return f.firstPage }
func (f *fakeAdapter) Categories() []platform.Category { return f.cats }

func (f *fakeAdapter) ListPage(_ context.Context, cat platform.Category, page int) (platform.ListResult, error) {
	f.listCalls = append(f.listCalls, listCall{cat: cat.Tag, page: page})
	return f.listFn(cat, page)
}

func (f *fakeAdapter) FetchDetail(_ context.Context, id string) (platform.DetailResult, error) {
	f.detailCalls = append(f.detailCalls, id)
	if f.detailFn != nil {
		return f.detailFn(id)
	}
	return platform.DetailResult{OK: true, Payload: []byte(fmt.Sprintf(`{"id":%q}`, id))}, nil
}

// fakeStore records upserts and optionally fails specific ids.
type fakeStore struct {
	recs    []domain.ActivityDetail
	failIDs map[string]error
}

func (s *fakeStore) Upsert(_ context.Context, rec domain.ActivityDetail) error {
	if err, ok := s.failIDs[rec.ActivityID]; ok {
		return err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func items(ids ...string) []platform.Item {
	out := make([]platform.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, platform.Item{RawID: platform.ID(id)})
	}
	return out
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

func newService(a *fakeAdapter, st *fakeStore, maxPages int) *ScrapeService {
	svc := NewScrapeService(a, st, maxPages)
	svc.Now = fixedNow
	return svc
}

func TestRun_NoCategories(t *testing.T) {
	a := &fakeAdapter{name: "tiga"}
	err := newService(a, &fakeStore{}, 0).Run(context.Background())
	if !errors.Is(err, ErrNoCategories) {
		t.Fatalf("expected ErrNoCategories, got %v", err)
	}
}

func TestRun_CountStyleTermination(t *testing.T) {
	// Total=4 with 2 items per page: exactly two list calls, no third.
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{{ID: "11", Tag: "domestic"}},
		listFn: func(_ platform.Category, page int) (platform.ListResult, error) {
			switch page {
			case 0:
				return platform.ListResult{OK: true, Items: items("a", "b"), Total: 4}, nil
			case 1:
				return platform.ListResult{OK: true, Items: items("c", "d"), Total: 4}, nil
			default:
				return platform.ListResult{}, fmt.Errorf("page %d should not be fetched", page)
			}
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(a.listCalls) != 2 {
		t.Fatalf("expected 2 list calls, got %v", a.listCalls)
	}
	if len(st.recs) != 4 {
		t.Fatalf("expected 4 stored records, got %d", len(st.recs))
	}
	// every record carries the pipeline-derived fields
	for _, r := range st.recs {
		if r.Platform != "tiga" || r.TypeTag != "domestic" || r.DateKey != "2026-03-01" {
			t.Fatalf("record fields: %+v", r)
		}
	}
}

func TestRun_PageCountStyleTermination(t *testing.T) {
	// TotalPages=3 with 1-based pages: exactly three list calls.
	a := &fakeAdapter{
		name: "gaia", firstPage: 1,
		cats: []platform.Category{{ID: "E", Tag: "E"}},
		listFn: func(_ platform.Category, page int) (platform.ListResult, error) {
			if page > 3 {
				return platform.ListResult{}, fmt.Errorf("page %d should not be fetched", page)
			}
			return platform.ListResult{OK: true, Items: items(fmt.Sprintf("p%d", page)), TotalPages: 3}, nil
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(a.listCalls) != 3 {
		t.Fatalf("expected 3 list calls, got %v", a.listCalls)
	}
	if len(st.recs) != 3 {
		t.Fatalf("expected 3 stored records, got %d", len(st.recs))
	}
}

func TestRun_EmptyPageStops(t *testing.T) {
	a := &fakeAdapter{
		name: "gaia", firstPage: 1,
		cats: []platform.Category{{ID: "E", Tag: "E"}},
		listFn: func(_ platform.Category, page int) (platform.ListResult, error) {
			// no pagination metadata at all; emptiness is the only signal
			if page == 1 {
				return platform.ListResult{OK: true, Items: items("x")}, nil
			}
			return platform.ListResult{OK: true}, nil
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(a.listCalls) != 2 {
		t.Fatalf("expected 2 list calls, got %v", a.listCalls)
	}
	if len(st.recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(st.recs))
	}
}

func TestRun_MaxPagesCapsListingCalls(t *testing.T) {
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{{ID: "11", Tag: "domestic"}},
		listFn: func(_ platform.Category, page int) (platform.ListResult, error) {
			// endless listing; only the cap can stop it
			return platform.ListResult{OK: true, Items: items(fmt.Sprintf("i%d", page)), Total: 1000}, nil
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 1).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(a.listCalls) != 1 {
		t.Fatalf("max pages 1: expected exactly 1 list call, got %v", a.listCalls)
	}
	if len(st.recs) != 1 {
		t.Fatalf("expected the capped page's item stored, got %d", len(st.recs))
	}
}

func TestRun_IdentifierTieBreakAndSkip(t *testing.T) {
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{{ID: "11", Tag: "domestic"}},
		listFn: func(_ platform.Category, page int) (platform.ListResult, error) {
			return platform.ListResult{OK: true, Items: []platform.Item{
				{RawID: "raw-1", JumpID: "jump-1"},
				{RawID: "raw-2"},
				{}, // no identifier at all: skipped silently
			}, Total: 3}, nil
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(a.detailCalls) != 2 || a.detailCalls[0] != "jump-1" || a.detailCalls[1] != "raw-2" {
		t.Fatalf("detail calls: %v", a.detailCalls)
	}
	if len(st.recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(st.recs))
	}
}

func TestRun_ListFailureAbortsCategoryOnly(t *testing.T) {
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{
			{ID: "11", Tag: "domestic"},
			{ID: "22", Tag: "overseas"},
		},
		listFn: func(cat platform.Category, page int) (platform.ListResult, error) {
			if cat.Tag == "domestic" {
				if page == 0 {
					return platform.ListResult{OK: true, Items: items("a", "b"), Total: 100}, nil
				}
				return platform.ListResult{}, errors.New("connection reset")
			}
			return platform.ListResult{OK: true, Items: items("z"), Total: 1}, nil
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("a page failure must not fail the run: %v", err)
	}
	// page-1 items of the failed category survive, and the sibling ran
	ids := make([]string, 0, len(st.recs))
	for _, r := range st.recs {
		ids = append(ids, r.ActivityID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "z" {
		t.Fatalf("stored ids: %v", ids)
	}
}

func TestRun_RejectedListAbortsCategoryOnly(t *testing.T) {
	a := &fakeAdapter{
		name: "gaia", firstPage: 1,
		cats: []platform.Category{{ID: "E", Tag: "E"}, {ID: "L", Tag: "L"}},
		listFn: func(cat platform.Category, page int) (platform.ListResult, error) {
			if cat.Tag == "E" {
				return platform.ListResult{OK: false, Code: 500}, nil
			}
			return platform.ListResult{OK: true, Items: items("l1"), TotalPages: 1}, nil
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.recs) != 1 || st.recs[0].ActivityID != "l1" {
		t.Fatalf("stored: %+v", st.recs)
	}
}

func TestRun_DetailFailuresSkipItemOnly(t *testing.T) {
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{{ID: "11", Tag: "domestic"}},
		listFn: func(_ platform.Category, _ int) (platform.ListResult, error) {
			return platform.ListResult{OK: true, Items: items("bad-err", "bad-code", "good"), Total: 3}, nil
		},
		detailFn: func(id string) (platform.DetailResult, error) {
			switch id {
			case "bad-err":
				return platform.DetailResult{}, errors.New("timeout")
			case "bad-code":
				return platform.DetailResult{OK: false, Code: 4003}, nil
			default:
				return platform.DetailResult{OK: true, Payload: []byte(`{}`)}, nil
			}
		},
	}
	st := &fakeStore{}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.recs) != 1 || st.recs[0].ActivityID != "good" {
		t.Fatalf("stored: %+v", st.recs)
	}
}

func TestRun_StoreFailureSkipsItemOnly(t *testing.T) {
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{{ID: "11", Tag: "domestic"}},
		listFn: func(_ platform.Category, _ int) (platform.ListResult, error) {
			return platform.ListResult{OK: true, Items: items("a", "b"), Total: 2}, nil
		},
	}
	st := &fakeStore{failIDs: map[string]error{"a": errors.New("disk full")}}
	if err := newService(a, st, 0).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.recs) != 1 || st.recs[0].ActivityID != "b" {
		t.Fatalf("stored: %+v", st.recs)
	}
}

func TestRun_ContextCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeAdapter{
		name: "tiga", firstPage: 0,
		cats: []platform.Category{{ID: "11", Tag: "domestic"}},
		listFn: func(_ platform.Category, _ int) (platform.ListResult, error) {
			cancel() // cancelled mid-category
			return platform.ListResult{OK: true, Items: items("a"), Total: 100}, nil
		},
	}
	err := newService(a, &fakeStore{}, 0).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
