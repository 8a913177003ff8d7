package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Priya8975/price-tracker/internal/catalog"
	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/monitor"
	"github.com/Priya8975/price-tracker/internal/pricing"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/Priya8975/price-tracker/internal/store/memstore"
	"github.com/Priya8975/price-tracker/internal/subscription"
	ws "github.com/Priya8975/price-tracker/internal/websocket"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	prices map[string]string
}

func (f *fakeScraper) Scrape(_ context.Context, name, url string) (domain.ScrapedProduct, error) {
	p, ok := f.prices[url]
	if !ok {
		return domain.ScrapedProduct{}, domain.Errorf(domain.KindSourceUnavailable, "fetching %s: status 503", url)
	}
	avail := true
	return domain.ScrapedProduct{Name: name, ProductName: "Steel Kettle", URL: url, Price: p,
		ImageURL: url + ".png", IsAvailable: &avail}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	srv     *httptest.Server
	store   *memstore.Store
	scraper *fakeScraper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := testLogger()
	s := memstore.New()
	queue := store.NewRedisFromClient(client)
	dispatcher := engine.NewDispatcher(s, queue, 2, logger)
	fanout := engine.NewFanOut(s, s, dispatcher, logger)
	sc := &fakeScraper{prices: map[string]string{"https://shop.example/kettle": "£ 50.00"}}
	hub := ws.NewHub(logger)

	handler := NewRouter(Deps{
		Catalog:       catalog.NewService(s, s, s, sc, dispatcher, logger),
		Pricing:       pricing.NewService(s, s, sc, fanout, hub, 1, logger),
		Subscriptions: subscription.NewService(s, s, dispatcher, "http://tracker.test", logger),
		Monitor:       monitor.NewService(s, dispatcher, logger),
		Stats:         s,
		Queue:         queue,
		Breaker:       engine.NewCircuitBreaker(client, 5, time.Minute, logger),
		MailRelay:     "log",
		Hub:           hub,
		HealthChecks:  map[string]Pinger{"redis": queue},
		Logger:        logger,
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: s, scraper: sc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (ts *testServer) addKettle(t *testing.T) domain.Product {
	t.Helper()
	var p domain.Product
	code := ts.do(t, http.MethodPost, "/api/v1/products", domain.CreateProductRequest{Name: "kettle", URL: "https://shop.example/kettle"}, &p)
	if code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", code)
	}
	return p
}

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		name   string
		checks map[string]Pinger
		want   int
		status string
	}{
		{"all up", map[string]Pinger{"postgres": pinger{}}, http.StatusOK, "healthy"},
		{"one down", map[string]Pinger{"postgres": pinger{}, "redis": pinger{errors.New("refused")}}, http.StatusServiceUnavailable, "degraded"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HealthHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			var resp HealthResponse
			json.NewDecoder(rec.Body).Decode(&resp)
			if rec.Code != tt.want || resp.Status != tt.status {
				t.Errorf("expected %d %s, got %d %s", tt.want, tt.status, rec.Code, resp.Status)
			}
		})
	}
}

func TestProducts(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addKettle(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"get", http.MethodGet, "/api/v1/products/" + p.ID, nil, http.StatusOK},
		{"unknown", http.MethodGet, "/api/v1/products/missing", nil, http.StatusNotFound},
		{"duplicate url", http.MethodPost, "/api/v1/products", domain.CreateProductRequest{Name: "k", URL: "https://shop.example/kettle"}, http.StatusConflict},
		{"page unavailable", http.MethodPost, "/api/v1/products", domain.CreateProductRequest{Name: "k", URL: "https://shop.example/gone"}, http.StatusBadGateway},
		{"bad body", http.MethodPost, "/api/v1/products", "not an object", http.StatusBadRequest},
		{"search", http.MethodGet, "/api/v1/products/search?q=kettle", nil, http.StatusOK},
		{"empty search", http.MethodGet, "/api/v1/products/search?q=", nil, http.StatusUnprocessableEntity},
		{"list", http.MethodGet, "/api/v1/products?page=1&per_page=5", nil, http.StatusOK},
		{"bad page", http.MethodGet, "/api/v1/products?per_page=0", nil, http.StatusBadRequest},
		{"refresh", http.MethodPost, "/api/v1/products/" + p.ID + "/refresh", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := ts.do(t, tt.method, tt.path, tt.body, nil); code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestPriceCheckAndDelete(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addKettle(t)

	var sub domain.Subscriber
	if code := ts.do(t, http.MethodPost, "/api/v1/products/"+p.ID+"/subscribers",
		domain.SubscribeRequest{Email: "Sam@Example.com", Name: "Sam"}, &sub); code != http.StatusCreated {
		t.Fatalf("subscribe: expected 201, got %d", code)
	}

	ts.scraper.prices[p.URL] = "£ 65.00"
	var entry domain.PriceLogEntry
	if code := ts.do(t, http.MethodPost, "/api/v1/products/"+p.ID+"/prices", nil, &entry); code != http.StatusCreated {
		t.Fatalf("check: expected 201, got %d", code)
	}
	if entry.ChangeType != domain.ChangeRise || entry.PriceDiff != 15 {
		t.Errorf("expected a Rise of 15, got %s %v", entry.ChangeType, entry.PriceDiff)
	}

	var summary pricing.CycleSummary
	if code := ts.do(t, http.MethodPost, "/api/v1/prices/check", nil, &summary); code != http.StatusOK {
		t.Fatalf("cycle: expected 200, got %d", code)
	}
	if summary.Total != 1 || summary.Updated != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}

	var history []domain.PriceLogEntry
	ts.do(t, http.MethodGet, "/api/v1/products/"+p.ID+"/prices", nil, &history)
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}

	var count map[string]int
	ts.do(t, http.MethodGet, "/api/v1/tasks/count?kind=price_changed", nil, &count)
	if count["count"] != 1 {
		t.Errorf("expected 1 price_changed task, got %v", count)
	}

	var res catalog.CascadeResult
	if code := ts.do(t, http.MethodDelete, "/api/v1/products/"+p.ID, nil, &res); code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", code)
	}
	if res.PriceLogs != 2 || res.Subscribers != 1 {
		t.Errorf("unexpected cascade %+v", res)
	}
}

func TestPriceLogMaintenance(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addKettle(t)

	var entry domain.PriceLogEntry
	ts.do(t, http.MethodPost, "/api/v1/products/"+p.ID+"/prices", nil, &entry)

	if code := ts.do(t, http.MethodDelete, "/api/v1/prices", nil, nil); code != http.StatusBadRequest {
		t.Errorf("purge without cutoff: expected 400, got %d", code)
	}
	var purged map[string]int64
	if code := ts.do(t, http.MethodDelete, "/api/v1/prices?older_than=2000-01-01", nil, &purged); code != http.StatusOK || purged["deleted"] != 0 {
		t.Errorf("purge: expected 200 with 0 deleted, got %d %v", code, purged)
	}
	if code := ts.do(t, http.MethodDelete, "/api/v1/prices/"+entry.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", code)
	}
	if code := ts.do(t, http.MethodDelete, "/api/v1/prices/"+entry.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", code)
	}
}

func TestSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addKettle(t)
	path := "/api/v1/products/" + p.ID + "/subscribers"

	if code := ts.do(t, http.MethodPost, path, domain.SubscribeRequest{Email: "sam@example.com", Name: "Sam"}, nil); code != http.StatusCreated {
		t.Fatalf("subscribe: expected 201, got %d", code)
	}
	if code := ts.do(t, http.MethodPost, path, domain.SubscribeRequest{Email: "SAM@example.com", Name: "Sam"}, nil); code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", code)
	}

	var byEmail []domain.Subscriber
	ts.do(t, http.MethodGet, "/api/v1/subscribers?email=sam@example.com", nil, &byEmail)
	if len(byEmail) != 1 {
		t.Errorf("expected 1 subscription by email, got %d", len(byEmail))
	}

	// The link from the confirmation email.
	link := "/subscriptions/" + p.ID + "/unsubscribe?email=sam%40example.com"
	if code := ts.do(t, http.MethodGet, link, nil, nil); code != http.StatusOK {
		t.Errorf("unsubscribe link: expected 200, got %d", code)
	}
	if code := ts.do(t, http.MethodDelete, path, domain.UnsubscribeRequest{Email: "sam@example.com"}, nil); code != http.StatusNotFound {
		t.Errorf("second unsubscribe: expected 404, got %d", code)
	}

	var subs []domain.Subscriber
	ts.do(t, http.MethodGet, path, nil, &subs)
	if len(subs) != 0 {
		t.Errorf("expected no subscribers, got %d", len(subs))
	}

	// The re-subscribe link from the goodbye email.
	resubscribe := "/subscriptions/" + p.ID + "/subscribe?email=sam%40example.com"
	if code := ts.do(t, http.MethodGet, resubscribe, nil, nil); code != http.StatusCreated {
		t.Errorf("re-subscribe link: expected 201, got %d", code)
	}
	ts.do(t, http.MethodGet, path, nil, &subs)
	if len(subs) != 1 || subs[0].Email != "sam@example.com" {
		t.Errorf("expected sam to be subscribed again, got %+v", subs)
	}
}

func TestTasks(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	failed := &domain.JobAudit{Kind: domain.NotifyPriceChanged, Recipient: "a@example.com", Payload: json.RawMessage(`{}`)}
	done := &domain.JobAudit{Kind: domain.NotifyPriceChanged, Recipient: "b@example.com", Payload: json.RawMessage(`{}`)}
	for _, a := range []*domain.JobAudit{failed, done} {
		if err := ts.store.InsertJobAudit(ctx, a); err != nil {
			t.Fatalf("insert audit: %v", err)
		}
	}
	ts.store.SaveJobResult(ctx, &domain.JobResult{JobID: failed.ID, Status: domain.JobFailure, Attempts: 3})
	ts.store.SaveJobResult(ctx, &domain.JobResult{JobID: done.ID, Status: domain.JobSuccess, Attempts: 1})

	var jobs []domain.JobRecord
	if code := ts.do(t, http.MethodGet, "/api/v1/tasks?status=FAILURE", nil, &jobs); code != http.StatusOK || len(jobs) != 1 {
		t.Fatalf("expected 1 failed task, got %d (%d)", len(jobs), code)
	}
	if code := ts.do(t, http.MethodGet, "/api/v1/tasks?status=LOST", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad status: expected 400, got %d", code)
	}
	if code := ts.do(t, http.MethodGet, "/api/v1/tasks?from=2024-02-01&to=2024-01-01", nil, nil); code != http.StatusBadRequest {
		t.Errorf("inverted range: expected 400, got %d", code)
	}
	if code := ts.do(t, http.MethodGet, "/api/v1/tasks/"+done.ID, nil, nil); code != http.StatusOK {
		t.Errorf("get: expected 200, got %d", code)
	}

	if code := ts.do(t, http.MethodPost, "/api/v1/tasks/"+done.ID+"/retry", nil, nil); code != http.StatusConflict {
		t.Errorf("retry success: expected 409, got %d", code)
	}
	var retried map[string]string
	if code := ts.do(t, http.MethodPost, "/api/v1/tasks/"+failed.ID+"/retry", nil, &retried); code != http.StatusCreated {
		t.Fatalf("retry: expected 201, got %d", code)
	}
	if retried["retry_of"] != failed.ID || retried["job_id"] == "" {
		t.Errorf("unexpected retry response %v", retried)
	}

	var bulk monitor.BulkRetryResult
	if code := ts.do(t, http.MethodPost, "/api/v1/tasks/retry-failed", nil, &bulk); code != http.StatusCreated {
		t.Fatalf("bulk retry: expected 201, got %d", code)
	}
	if bulk.Total != 1 || bulk.Retried != 1 {
		t.Errorf("unexpected bulk result %+v", bulk)
	}

	var purged map[string]int64
	ts.do(t, http.MethodDelete, "/api/v1/tasks?older_than="+time.Now().Add(time.Hour).UTC().Format(time.RFC3339), nil, &purged)
	if purged["deleted"] != 4 {
		t.Errorf("expected 4 purged tasks, got %v", purged)
	}
}

func TestDashboardMetrics(t *testing.T) {
	ts := newTestServer(t)
	p := ts.addKettle(t)
	ts.do(t, http.MethodPost, "/api/v1/products/"+p.ID+"/subscribers", domain.SubscribeRequest{Email: "a@example.com", Name: "A"}, nil)

	var got struct {
		Products   int                 `json:"products"`
		QueueDepth int64               `json:"queue_depth"`
		MailRelay  engine.BreakerState `json:"mail_relay"`
	}
	if code := ts.do(t, http.MethodGet, "/api/v1/metrics", nil, &got); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if got.Products != 1 || got.QueueDepth != 1 || got.MailRelay.State != engine.StateClosed {
		t.Errorf("unexpected metrics %+v", got)
	}

	if code := ts.do(t, http.MethodGet, "/metrics", nil, nil); code != http.StatusOK {
		t.Errorf("prometheus: expected 200, got %d", code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindFormat, http.StatusUnprocessableEntity},
		{domain.KindSourceUnavailable, http.StatusBadGateway},
		{domain.KindDuplicate, http.StatusConflict},
		{domain.KindInvalidState, http.StatusConflict},
		{domain.KindTransient, http.StatusInternalServerError},
		{domain.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.kind, tt.want, got)
		}
	}
}
