// Package pricing runs price checks and manages the price history.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/metrics"
	"github.com/Priya8975/price-tracker/internal/price"
	"github.com/Priya8975/price-tracker/internal/store"
	ws "github.com/Priya8975/price-tracker/internal/websocket"
	"golang.org/x/sync/errgroup"
)

type Scraper interface {
	Scrape(ctx context.Context, name, url string) (domain.ScrapedProduct, error)
}

type Notifier interface {
	NotifySubscribers(ctx context.Context, change engine.PriceChange) (int, error)
}

type Broadcaster interface {
	Broadcast(event ws.Event)
}

// CycleSummary reports the outcome of one pass over every product.
type CycleSummary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

type Service struct {
	products    store.ProductStore
	logs        store.PriceLogStore
	scraper     Scraper
	notifier    Notifier
	hub         Broadcaster
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewService wires a pricing service. concurrency bounds how many
// products a cycle checks at once; 1 or less checks them in order. hub
// may be nil.
func NewService(products store.ProductStore, logs store.PriceLogStore, scraper Scraper, notifier Notifier, hub Broadcaster, concurrency int, logger *slog.Logger) *Service {
	return &Service{
		products:    products,
		logs:        logs,
		scraper:     scraper,
		notifier:    notifier,
		hub:         hub,
		concurrency: concurrency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LogPrice checks one product: it scrapes the page, compares the new
// price with the stored one and writes a history entry. The entry is
// written for every check. Subscribers are notified only on a rise or a
// drop, after the entry is stored.
func (s *Service) LogPrice(ctx context.Context, productID string) (*domain.PriceLogEntry, error) {
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	snap, err := s.scraper.Scrape(ctx, product.Name, product.URL)
	if err != nil {
		return nil, err
	}

	prevDisplay, prevValue, err := price.Canonical(product.Price)
	if err != nil {
		return nil, fmt.Errorf("stored price: %w", err)
	}
	curDisplay, curValue, err := price.Canonical(snap.Price)
	if err != nil {
		return nil, fmt.Errorf("scraped price: %w", err)
	}

	change := price.DetectChange(prevValue, curValue)
	checked := s.now()

	entry := &domain.PriceLogEntry{
		ProductID:     productID,
		PreviousPrice: prevDisplay,
		CurrentPrice:  curDisplay,
		PriceDiff:     change.PriceDiff,
		ChangeType:    change.Type,
		DateChecked:   checked,
	}
	if err := s.logs.InsertPriceLog(ctx, entry); err != nil {
		return nil, err
	}
	metrics.PriceChangesTotal.WithLabelValues(string(change.Type)).Inc()

	snap.Price = curDisplay
	snap.DateChecked = checked
	product.Apply(snap)
	if err := s.products.ReplaceProduct(ctx, product); err != nil {
		s.logger.Warn("failed to update product after check", "product_id", productID, "error", err)
	}

	if change.Significant {
		_, err := s.notifier.NotifySubscribers(ctx, engine.PriceChange{
			ProductID:     productID,
			PreviousPrice: prevValue,
			NewPrice:      curValue,
			PriceDiff:     change.PriceDiff,
			ChangeType:    change.Type,
			DateChecked:   checked,
		})
		if err != nil {
			s.logger.Error("failed to notify subscribers", "product_id", productID, "error", err)
		}
	}

	if s.hub != nil {
		s.hub.Broadcast(ws.Event{
			Type:       ws.EventPriceChecked,
			ProductID:  productID,
			ChangeType: string(change.Type),
			Price:      curDisplay,
			PriceDiff:  change.PriceDiff,
			Timestamp:  checked,
		})
	}

	return entry, nil
}

// RunCycle checks every product. A failing product is logged and
// counted; it never stops the cycle.
func (s *Service) RunCycle(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()

	ids, err := s.products.ListProductIDs(ctx)
	if err != nil {
		return CycleSummary{}, fmt.Errorf("listing products: %w", err)
	}

	summary := CycleSummary{Total: len(ids)}
	var mu sync.Mutex
	check := func(id string) {
		err := ctx.Err()
		if err == nil {
			_, err = s.LogPrice(ctx, id)
		}

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			summary.Errors++
			metrics.PriceChecksTotal.WithLabelValues("error").Inc()
			s.logger.Error("price check failed",
				"product_id", id,
				"kind", domain.KindOf(err).String(),
				"error", err,
			)
			return
		}
		summary.Updated++
		metrics.PriceChecksTotal.WithLabelValues("ok").Inc()
	}

	if s.concurrency <= 1 {
		for _, id := range ids {
			check(id)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, id := range ids {
			g.Go(func() error {
				check(id)
				return nil
			})
		}
		g.Wait()
	}

	s.logger.Info("price check cycle complete",
		"total", summary.Total,
		"updated", summary.Updated,
		"errors", summary.Errors,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return summary, nil
}

// History lists a product's entries oldest first.
func (s *Service) History(ctx context.Context, productID string, page store.Page) ([]domain.PriceLogEntry, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.logs.ListPriceLogs(ctx, productID, page)
}

func (s *Service) ListAll(ctx context.Context, page store.Page) ([]domain.PriceLogEntry, error) {
	return s.logs.ListPriceLogs(ctx, "", page)
}

func (s *Service) DeleteLog(ctx context.Context, id string) error {
	return s.logs.DeletePriceLog(ctx, id)
}

// PurgeOlderThan removes entries checked before cutoff.
func (s *Service) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.logs.DeletePriceLogsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("purged price history", "before", cutoff.Format(time.RFC3339), "deleted", n)
	return n, nil
}
