package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/store"
)

// JobDispatcher submits a notification job and returns its ID.
type JobDispatcher interface {
	Dispatch(ctx context.Context, job domain.NotificationJob) (string, error)
}

// PriceChange describes one significant price movement.
type PriceChange struct {
	ProductID     string
	PreviousPrice float64
	NewPrice      float64
	PriceDiff     float64
	ChangeType    domain.ChangeType
	DateChecked   time.Time
}

// FanOut turns a price change into one notification per subscriber.
type FanOut struct {
	products    store.ProductStore
	subscribers store.SubscriberStore
	dispatcher  JobDispatcher
	logger      *slog.Logger
}

func NewFanOut(products store.ProductStore, subscribers store.SubscriberStore, dispatcher JobDispatcher, logger *slog.Logger) *FanOut {
	return &FanOut{
		products:    products,
		subscribers: subscribers,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// NotifySubscribers dispatches a price_changed job to every subscriber of
// the product. A failure for one subscriber is logged and skipped. It
// returns the number of jobs dispatched.
func (f *FanOut) NotifySubscribers(ctx context.Context, change PriceChange) (int, error) {
	subscribers, err := f.subscribers.ListSubscribersByProduct(ctx, change.ProductID, store.All)
	if err != nil {
		return 0, fmt.Errorf("listing subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		f.logger.Debug("no subscribers to notify", "product_id", change.ProductID)
		return 0, nil
	}

	product, err := f.products.GetProduct(ctx, change.ProductID)
	if err != nil {
		return 0, fmt.Errorf("loading product: %w", err)
	}
	productName := product.ProductName
	if productName == "" {
		productName = product.Name
	}
	dateChecked := change.DateChecked.Format("2006-01-02")

	dispatched := 0
	for _, sub := range subscribers {
		job, err := domain.NewNotificationJob(domain.NotifyPriceChanged, sub.Email, domain.PriceChangedPayload{
			ToEmail:       sub.Email,
			Name:          sub.Name,
			ProductName:   productName,
			PreviousPrice: change.PreviousPrice,
			NewPrice:      change.NewPrice,
			PriceDiff:     change.PriceDiff,
			ChangeType:    change.ChangeType,
			DateChecked:   dateChecked,
			ProductLink:   product.URL,
		})
		if err == nil {
			_, err = f.dispatcher.Dispatch(ctx, job)
		}
		if err != nil {
			f.logger.Error("failed to notify subscriber",
				"product_id", change.ProductID,
				"subscriber_id", sub.ID,
				"error", err,
			)
			continue
		}
		dispatched++
	}

	f.logger.Info("fan-out complete",
		"product_id", change.ProductID,
		"change_type", change.ChangeType,
		"subscribers", len(subscribers),
		"dispatched", dispatched,
	)
	return dispatched, nil
}
