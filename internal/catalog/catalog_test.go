package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/Priya8975/price-tracker/internal/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	pages map[string]domain.ScrapedProduct
}

func (f *fakeScraper) Scrape(_ context.Context, name, url string) (domain.ScrapedProduct, error) {
	snap, ok := f.pages[url]
	if !ok {
		return domain.ScrapedProduct{}, domain.Errorf(domain.KindSourceUnavailable, "fetching %s: status 404", url)
	}
	snap.Name, snap.URL = name, url
	return snap, nil
}

func boolPtr(b bool) *bool { return &b }

func kettlePage(priceText string) domain.ScrapedProduct {
	return domain.ScrapedProduct{
		ProductName: "Steel Kettle",
		Price:       priceText,
		ImageURL:    "https://shop.example/kettle.png",
		IsAvailable: boolPtr(true),
	}
}

func setup(t *testing.T) (*Service, *memstore.Store, *fakeScraper) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := memstore.New()
	dispatcher := engine.NewDispatcher(s, store.NewRedisFromClient(client), 2, testLogger())
	sc := &fakeScraper{pages: map[string]domain.ScrapedProduct{
		"https://shop.example/kettle": kettlePage("£25"),
	}}
	return NewService(s, s, s, sc, dispatcher, testLogger()), s, sc
}

func TestAddProduct(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	p, err := svc.AddProduct(ctx, domain.CreateProductRequest{Name: " kettle ", URL: "https://shop.example/kettle"})
	if err != nil {
		t.Fatalf("add product: %v", err)
	}
	if p.ID == "" || p.Name != "kettle" || p.Price != "£ 25.00" || p.DateChecked == nil {
		t.Errorf("unexpected product: %+v", p)
	}

	got, err := svc.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Errorf("stored product mismatch (-want +got):\n%s", diff)
	}
}

func TestAddProduct_Errors(t *testing.T) {
	svc, _, sc := setup(t)
	ctx := context.Background()
	sc.pages["https://shop.example/dollars"] = kettlePage("$25.00")

	if _, err := svc.AddProduct(ctx, domain.CreateProductRequest{Name: "kettle", URL: "https://shop.example/kettle"}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	tests := []struct {
		name string
		req  domain.CreateProductRequest
		kind domain.ErrorKind
	}{
		{"missing name", domain.CreateProductRequest{URL: "https://shop.example/kettle"}, domain.KindFormat},
		{"relative url", domain.CreateProductRequest{Name: "x", URL: "/kettle"}, domain.KindFormat},
		{"wrong currency", domain.CreateProductRequest{Name: "x", URL: "https://shop.example/dollars"}, domain.KindFormat},
		{"page missing", domain.CreateProductRequest{Name: "x", URL: "https://shop.example/gone"}, domain.KindSourceUnavailable},
		{"already tracked", domain.CreateProductRequest{Name: "x", URL: "https://shop.example/kettle"}, domain.KindDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddProduct(ctx, tt.req)
			if !domain.IsKind(err, tt.kind) {
				t.Errorf("expected %s error, got %v", tt.kind, err)
			}
		})
	}
}

func TestRefreshProduct_ReplaceOrPatch(t *testing.T) {
	svc, _, sc := setup(t)
	ctx := context.Background()
	url := "https://shop.example/kettle"

	p, err := svc.AddProduct(ctx, domain.CreateProductRequest{Name: "kettle", URL: url})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// An incomplete page keeps the fields it is missing.
	sc.pages[url] = domain.ScrapedProduct{Price: "£ 30.00"}
	got, err := svc.RefreshProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.Price != "£ 30.00" || got.ProductName != "Steel Kettle" || got.ImageURL == "" {
		t.Errorf("expected a patch, got %+v", got)
	}

	// A complete page replaces every page field.
	full := kettlePage("£ 28.00")
	full.ProductName = "Steel Kettle 1.7L"
	full.IsAvailable = boolPtr(false)
	sc.pages[url] = full
	got, err = svc.RefreshProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got.ProductName != "Steel Kettle 1.7L" || *got.IsAvailable || got.Price != "£ 28.00" {
		t.Errorf("expected a replace, got %+v", got)
	}

	if _, err := svc.RefreshProduct(ctx, "missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	if _, err := svc.AddProduct(ctx, domain.CreateProductRequest{Name: "kettle", URL: "https://shop.example/kettle"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := svc.Search(ctx, "STEEL")
	if err != nil || len(got) != 1 {
		t.Fatalf("expected 1 match, got %d (%v)", len(got), err)
	}
	if _, err := svc.Search(ctx, "  "); !domain.IsKind(err, domain.KindFormat) {
		t.Errorf("expected Format error for empty term, got %v", err)
	}

	list, err := svc.List(ctx, store.Page{Page: 2, PerPage: 20})
	if err != nil || len(list) != 0 {
		t.Errorf("expected an empty second page, got %d (%v)", len(list), err)
	}
}

func TestDeleteProduct_Cascades(t *testing.T) {
	svc, s, _ := setup(t)
	ctx := context.Background()

	p, err := svc.AddProduct(ctx, domain.CreateProductRequest{Name: "kettle", URL: "https://shop.example/kettle"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	for i := 0; i < 2; i++ {
		entry := &domain.PriceLogEntry{ProductID: p.ID, PreviousPrice: "£ 25.00", CurrentPrice: "£ 25.00",
			ChangeType: domain.ChangeNoChange, DateChecked: time.Now()}
		if err := s.InsertPriceLog(ctx, entry); err != nil {
			t.Fatalf("insert log: %v", err)
		}
	}
	if err := s.InsertSubscriber(ctx, &domain.Subscriber{ProductID: p.ID, Email: "a@example.com", Name: "Sam", ProductName: "Steel Kettle"}); err != nil {
		t.Fatalf("insert subscriber: %v", err)
	}

	res, err := svc.DeleteProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if diff := cmp.Diff(CascadeResult{PriceLogs: 2, Subscribers: 1, Notified: 1}, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	logs, _ := s.ListPriceLogs(ctx, p.ID, store.All)
	subs, _ := s.ListSubscribersByProduct(ctx, p.ID, store.All)
	if len(logs) != 0 || len(subs) != 0 {
		t.Errorf("expected no history or subscribers, got %d logs and %d subscribers", len(logs), len(subs))
	}
	if _, err := s.GetProduct(ctx, p.ID); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("expected product to be gone, got %v", err)
	}

	jobs, err := s.FilterJobs(ctx, domain.JobFilter{Kind: domain.NotifyProductRemoved})
	if err != nil {
		t.Fatalf("filter jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Recipient != "a@example.com" {
		t.Fatalf("expected 1 product_removed job for a@example.com, got %+v", jobs)
	}
}

func TestDeleteProduct_NotFound(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.DeleteProduct(context.Background(), "missing"); !domain.IsKind(err, domain.KindNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}
