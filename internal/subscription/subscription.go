// Package subscription manages who is told about a product's price.
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/engine"
	"github.com/Priya8975/price-tracker/internal/store"
)

type Service struct {
	products    store.ProductStore
	subscribers store.SubscriberStore
	dispatcher  engine.JobDispatcher
	baseURL     string
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds the service. baseURL prefixes the links placed in
// confirmation emails.
func NewService(products store.ProductStore, subscribers store.SubscriberStore, dispatcher engine.JobDispatcher, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		products:    products,
		subscribers: subscribers,
		dispatcher:  dispatcher,
		baseURL:     strings.TrimRight(baseURL, "/"),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Errorf(domain.KindFormat, "invalid email address %q", email)
	}
	return email, nil
}

func (s *Service) unsubscribeLink(productID, email string) string {
	return fmt.Sprintf("%s/subscriptions/%s/unsubscribe?email=%s", s.baseURL, url.PathEscape(productID), url.QueryEscape(email))
}

func (s *Service) subscribeLink(productID, email string) string {
	return fmt.Sprintf("%s/subscriptions/%s/subscribe?email=%s", s.baseURL, url.PathEscape(productID), url.QueryEscape(email))
}

// Subscribe registers email for a product and sends a confirmation.
func (s *Service) Subscribe(ctx context.Context, productID string, req domain.SubscribeRequest) (*domain.Subscriber, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscriber{
		ProductID:    productID,
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		ProductName:  p.ProductName,
		ProductURL:   p.URL,
		SubscribedAt: s.now(),
	}
	if err := s.subscribers.InsertSubscriber(ctx, sub); err != nil {
		return nil, err
	}

	s.dispatch(ctx, domain.NotifySubscriptionConfirmed, sub, domain.SubscriptionConfirmedPayload{
		ToEmail:         sub.Email,
		Name:            sub.Name,
		ProductName:     sub.ProductName,
		UnsubscribeLink: s.unsubscribeLink(productID, sub.Email),
	})

	s.logger.Info("subscribed", "product_id", productID, "subscriber_id", sub.ID)
	return sub, nil
}

// Unsubscribe removes email from a product and sends a goodbye with a
// link to subscribe again.
func (s *Service) Unsubscribe(ctx context.Context, productID string, req domain.UnsubscribeRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	sub, err := s.subscribers.FindSubscriber(ctx, productID, email)
	if err != nil {
		return err
	}
	if err := s.subscribers.DeleteSubscriber(ctx, sub.ID); err != nil {
		return err
	}

	s.dispatch(ctx, domain.NotifyUnsubscribed, sub, domain.UnsubscribedPayload{
		ToEmail:          sub.Email,
		Name:             sub.Name,
		ProductName:      sub.ProductName,
		SubscriptionLink: s.subscribeLink(productID, sub.Email),
	})

	s.logger.Info("unsubscribed", "product_id", productID, "subscriber_id", sub.ID)
	return nil
}

// dispatch sends a courtesy email. The subscription change has already
// been stored, so a failure here is only logged.
func (s *Service) dispatch(ctx context.Context, kind domain.NotificationKind, sub *domain.Subscriber, payload any) {
	job, err := domain.NewNotificationJob(kind, sub.Email, payload)
	if err == nil {
		_, err = s.dispatcher.Dispatch(ctx, job)
	}
	if err != nil {
		s.logger.Error("failed to dispatch notification",
			"kind", string(kind),
			"product_id", sub.ProductID,
			"subscriber_id", sub.ID,
			"error", err,
		)
	}
}

func (s *Service) ListByProduct(ctx context.Context, productID string, page store.Page) ([]domain.Subscriber, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.subscribers.ListSubscribersByProduct(ctx, productID, page)
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]domain.Subscriber, error) {
	return s.subscribers.ListSubscribersByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) ListAll(ctx context.Context, page store.Page) ([]domain.Subscriber, error) {
	return s.subscribers.ListSubscribers(ctx, page)
}
