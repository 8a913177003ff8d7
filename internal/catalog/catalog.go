// Package catalog manages tracked products. Deleting a product cascades
// to its price history and subscribers.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/price"
	"github.com/Priya8975/price-tracker/internal/store"
)

type Scraper interface {
	Scrape(ctx context.Context, name, url string) (domain.ScrapedProduct, error)
}

// CascadeResult counts what a product deletion removed.
type CascadeResult struct {
	PriceLogs   int64 `json:"price_logs_deleted"`
	Subscribers int   `json:"subscribers_deleted"`
	Notified    int   `json:"subscribers_notified"`
}

type Service struct {
	products    store.ProductStore
	logs        store.PriceLogStore
	subscribers store.SubscriberStore
	scraper     Scraper
	dispatcher  engine.JobDispatcher
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(products store.ProductStore, logs store.PriceLogStore, subscribers store.SubscriberStore, scraper Scraper, dispatcher engine.JobDispatcher, logger *slog.Logger) *Service {
	return &Service{
		products:    products,
		logs:        logs,
		subscribers: subscribers,
		scraper:     scraper,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func validateRequest(req domain.CreateProductRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return domain.Errorf(domain.KindFormat, "name is required")
	}
	u, err := url.ParseRequestURI(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.Errorf(domain.KindFormat, "url %q must be an absolute http(s) URL", req.URL)
	}
	return nil
}

// scrape reads the product page and canonicalises the price.
func (s *Service) scrape(ctx context.Context, name, pageURL string) (domain.ScrapedProduct, error) {
	snap, err := s.scraper.Scrape(ctx, name, pageURL)
	if err != nil {
		return domain.ScrapedProduct{}, err
	}
	display, _, err := price.Canonical(snap.Price)
	if err != nil {
		return domain.ScrapedProduct{}, err
	}
	snap.Price = display
	snap.DateChecked = s.now()
	return snap, nil
}

// AddProduct scrapes a new product page and starts tracking it.
func (s *Service) AddProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	snap, err := s.scrape(ctx, req.Name, req.URL)
	if err != nil {
		return nil, err
	}

	p := &domain.Product{Name: req.Name, URL: req.URL}
	p.Apply(snap)
	if err := s.products.InsertProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("product added", "product_id", p.ID, "url", p.URL, "price", p.Price)
	return p, nil
}

// RefreshProduct re-scrapes a product and stores the result.
func (s *Service) RefreshProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	snap, err := s.scrape(ctx, p.Name, p.URL)
	if err != nil {
		return nil, err
	}

	p.Apply(snap)
	if err := s.products.ReplaceProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("product refreshed", "product_id", id, "complete", snap.Complete())
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetProduct(ctx, id)
}

func (s *Service) List(ctx context.Context, page store.Page) ([]domain.Product, error) {
	return s.products.ListProducts(ctx, page)
}

func (s *Service) Search(ctx context.Context, term string) ([]domain.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.Errorf(domain.KindFormat, "search term is required")
	}
	return s.products.SearchProducts(ctx, term)
}

// DeleteProduct removes a product with its price history and
// subscribers. Each subscriber is sent a product_removed notice before
// its record is deleted. The steps are not transactional; a failure
// part way leaves the remaining records in place.
func (s *Service) DeleteProduct(ctx context.Context, id string) (CascadeResult, error) {
	var res CascadeResult

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return res, err
	}

	res.PriceLogs, err = s.logs.DeletePriceLogsByProduct(ctx, id)
	if err != nil {
		return res, fmt.Errorf("deleting price history: %w", err)
	}

	subs, err := s.subscribers.ListSubscribersByProduct(ctx, id, store.All)
	if err != nil {
		return res, fmt.Errorf("listing subscribers: %w", err)
	}

	for _, sub := range subs {
		if s.notifyRemoved(ctx, p, sub) {
			res.Notified++
		}
		if err := s.subscribers.DeleteSubscriber(ctx, sub.ID); err != nil {
			return res, fmt.Errorf("deleting subscriber %s: %w", sub.ID, err)
		}
		res.Subscribers++
	}

	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return res, err
	}

	s.logger.Info("product deleted",
		"product_id", id,
		"price_logs", res.PriceLogs,
		"subscribers", res.Subscribers,
	)
	return res, nil
}

func (s *Service) notifyRemoved(ctx context.Context, p *domain.Product, sub domain.Subscriber) bool {
	productName := sub.ProductName
	if productName == "" {
		productName = p.ProductName
	}

	job, err := domain.NewNotificationJob(domain.NotifyProductRemoved, sub.Email, domain.ProductRemovedPayload{
		ToEmail:     sub.Email,
		Name:        sub.Name,
		ProductName: productName,
	})
	if err == nil {
		_, err = s.dispatcher.Dispatch(ctx, job)
	}
	if err != nil {
		s.logger.Error("failed to notify subscriber of removal",
			"product_id", p.ID,
			"subscriber_id", sub.ID,
			"error", err,
		)
		return false
	}
	return true
}
