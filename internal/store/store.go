package store

import (
	"context"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
)

// Page selects a window of a listing. PerPage <= 0 means no limit.
type Page struct {
	Page    int
	PerPage int
}

// All is the unbounded page.
var All = Page{}

func (p Page) Limited() bool {
	return p.PerPage > 0
}

func (p Page) Offset() int {
	if p.Page <= 1 || p.PerPage <= 0 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

type ProductStore interface {
	InsertProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProductIDs(ctx context.Context) ([]string, error)
	ListProducts(ctx context.Context, page Page) ([]domain.Product, error)
	SearchProducts(ctx context.Context, term string) ([]domain.Product, error)
	ReplaceProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

type PriceLogStore interface {
	InsertPriceLog(ctx context.Context, e *domain.PriceLogEntry) error
	// ListPriceLogs returns entries oldest first. An empty productID lists
	// entries for every product.
	ListPriceLogs(ctx context.Context, productID string, page Page) ([]domain.PriceLogEntry, error)
	DeletePriceLog(ctx context.Context, id string) error
	DeletePriceLogsByProduct(ctx context.Context, productID string) (int64, error)
	DeletePriceLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SubscriberStore interface {
	// InsertSubscriber fails with KindDuplicate when the (product, email)
	// pair already exists.
	InsertSubscriber(ctx context.Context, s *domain.Subscriber) error
	FindSubscriber(ctx context.Context, productID, email string) (*domain.Subscriber, error)
	ListSubscribersByProduct(ctx context.Context, productID string, page Page) ([]domain.Subscriber, error)
	ListSubscribersByEmail(ctx context.Context, email string) ([]domain.Subscriber, error)
	ListSubscribers(ctx context.Context, page Page) ([]domain.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id string) error
}

type JobStore interface {
	InsertJobAudit(ctx context.Context, a *domain.JobAudit) error
	MarkJobSubmitted(ctx context.Context, id string, at time.Time) error
	// ListUnsubmittedJobs returns audits never handed to the queue that
	// were created before the given time.
	ListUnsubmittedJobs(ctx context.Context, createdBefore time.Time) ([]domain.JobAudit, error)
	SaveJobResult(ctx context.Context, r *domain.JobResult) error
	GetJob(ctx context.Context, id string) (*domain.JobRecord, error)
	FilterJobs(ctx context.Context, f domain.JobFilter) ([]domain.JobRecord, error)
	CountJobs(ctx context.Context, f domain.JobFilter) (int, error)
	PurgeJobs(ctx context.Context, cutoff time.Time) (int64, error)
}

// Stats holds aggregated counts for the dashboard.
type Stats struct {
	Products    int                       `json:"products"`
	Subscribers int                       `json:"subscribers"`
	PriceLogs   int                       `json:"price_logs"`
	Changes     map[domain.ChangeType]int `json:"changes"`
	Jobs        map[domain.JobStatus]int  `json:"jobs"`
}

type StatsReader interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Store is the full persistence surface.
type Store interface {
	ProductStore
	PriceLogStore
	SubscriberStore
	JobStore
	StatsReader
}
