// Package scraper reads product snapshots from shop pages.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/sethvargo/go-retry"
)

type Config struct {
	Timeout    time.Duration
	MaxRetries uint64
	BaseDelay  time.Duration
	UserAgent  string

	NameSelector         string
	PriceSelector        string
	ImageSelector        string
	AvailabilitySelector string
	AvailableText        string
	UnavailableText      string
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "price-tracker/1.0"
	}
	if c.NameSelector == "" {
		c.NameSelector = "h1"
	}
	if c.PriceSelector == "" {
		c.PriceSelector = ".price"
	}
	if c.ImageSelector == "" {
		c.ImageSelector = "img.product-image"
	}
	if c.AvailabilitySelector == "" {
		c.AvailabilitySelector = ".availability"
	}
	if c.AvailableText == "" {
		c.AvailableText = "in stock"
	}
	if c.UnavailableText == "" {
		c.UnavailableText = "out of stock"
	}
}

// Scraper fetches a page with a per-request timeout, retrying failed
// fetches with exponential backoff, and extracts fields with CSS
// selectors.
type Scraper struct {
	client *http.Client
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Scraper {
	cfg.setDefaults()
	return &Scraper{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Scrape returns a snapshot of the page at pageURL. It fails with
// KindSourceUnavailable when every attempt failed or the page has no
// price.
func (s *Scraper) Scrape(ctx context.Context, name, pageURL string) (domain.ScrapedProduct, error) {
	var body []byte
	attempt := 0

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.BaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		b, err := s.fetch(ctx, pageURL)
		if err != nil {
			s.logger.Warn("scrape attempt failed", "url", pageURL, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	if err != nil {
		return domain.ScrapedProduct{}, domain.Wrap(domain.KindSourceUnavailable, err,
			fmt.Sprintf("scraping %s after %d attempts", pageURL, attempt))
	}

	snap, err := s.extract(body, pageURL)
	if err != nil {
		return domain.ScrapedProduct{}, err
	}
	snap.Name = name
	return snap, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 5<<20))
}

func (s *Scraper) extract(body []byte, pageURL string) (domain.ScrapedProduct, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return domain.ScrapedProduct{}, domain.Wrap(domain.KindSourceUnavailable, err, "parsing page")
	}

	// Sale pages list the old and new price in separate elements.
	prices := doc.Find(s.cfg.PriceSelector).Map(func(_ int, sel *goquery.Selection) string {
		return strings.TrimSpace(sel.Text())
	})
	price := strings.TrimSpace(strings.Join(prices, " "))
	if price == "" {
		return domain.ScrapedProduct{}, domain.Wrap(domain.KindSourceUnavailable,
			errors.New("no price on page"), "scraping "+pageURL)
	}

	snap := domain.ScrapedProduct{
		ProductName: strings.Join(strings.Fields(doc.Find(s.cfg.NameSelector).First().Text()), " "),
		URL:         pageURL,
		Price:       price,
		DateChecked: time.Now().UTC(),
	}

	if src, ok := doc.Find(s.cfg.ImageSelector).First().Attr("src"); ok {
		snap.ImageURL = resolve(pageURL, src)
	}

	status := strings.ToLower(doc.Find(s.cfg.AvailabilitySelector).First().Text())
	switch {
	case strings.Contains(status, strings.ToLower(s.cfg.UnavailableText)):
		available := false
		snap.IsAvailable = &available
	case strings.Contains(status, strings.ToLower(s.cfg.AvailableText)):
		available := true
		snap.IsAvailable = &available
	}

	return snap, nil
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
