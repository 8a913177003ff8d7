// Package memstore is an in-memory store.Store for tests and local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/google/uuid"
)

type Store struct {
	mu          sync.Mutex
	products    []domain.Product
	logs        []domain.PriceLogEntry
	subscribers []domain.Subscriber
	audits      []domain.JobAudit
	results     map[string]domain.JobResult
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{results: map[string]domain.JobResult{}}
}

func paginate[T any](items []T, p store.Page) []T {
	if !p.Limited() {
		return items
	}
	start := p.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + p.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func (s *Store) productIndex(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) InsertProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if existing.URL == p.URL {
			return domain.Duplicate("product", p.URL)
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.products = append(s.products, *p)
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(id)
	if i < 0 {
		return nil, domain.NotFound("product", id)
	}
	p := s.products[i]
	return &p, nil
}

func (s *Store) ListProductIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.products))
	for _, p := range s.products {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (s *Store) sortedProducts() []domain.Product {
	out := append([]domain.Product(nil), s.products...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductName != out[j].ProductName {
			return out[i].ProductName < out[j].ProductName
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *Store) ListProducts(_ context.Context, page store.Page) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paginate(s.sortedProducts(), page), nil
}

func (s *Store) SearchProducts(_ context.Context, term string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	term = strings.ToLower(term)
	out := []domain.Product{}
	for _, p := range s.sortedProducts() {
		if strings.Contains(strings.ToLower(p.Name), term) || strings.Contains(strings.ToLower(p.ProductName), term) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ReplaceProduct(_ context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(p.ID)
	if i < 0 {
		return domain.NotFound("product", p.ID)
	}
	p.CreatedAt = s.products[i].CreatedAt
	s.products[i] = *p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.productIndex(id)
	if i < 0 {
		return domain.NotFound("product", id)
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	return nil
}

func (s *Store) InsertPriceLog(_ context.Context, e *domain.PriceLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.logs = append(s.logs, *e)
	return nil
}

func (s *Store) ListPriceLogs(_ context.Context, productID string, page store.Page) ([]domain.PriceLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.PriceLogEntry{}
	for _, e := range s.logs {
		if productID == "" || e.ProductID == productID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DateChecked.Before(out[j].DateChecked) })
	return paginate(out, page), nil
}

func (s *Store) DeletePriceLog(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.logs {
		if e.ID == id {
			s.logs = append(s.logs[:i], s.logs[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("price log", id)
}

func (s *Store) deleteLogsWhere(match func(domain.PriceLogEntry) bool) int64 {
	kept := s.logs[:0]
	var n int64
	for _, e := range s.logs {
		if match(e) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.logs = kept
	return n
}

func (s *Store) DeletePriceLogsByProduct(_ context.Context, productID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLogsWhere(func(e domain.PriceLogEntry) bool { return e.ProductID == productID }), nil
}

func (s *Store) DeletePriceLogsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLogsWhere(func(e domain.PriceLogEntry) bool { return e.DateChecked.Before(cutoff) }), nil
}

func (s *Store) InsertSubscriber(_ context.Context, sub *domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subscribers {
		if existing.ProductID == sub.ProductID && existing.Email == sub.Email {
			return domain.Duplicate("subscription", sub.Email)
		}
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}
	s.subscribers = append(s.subscribers, *sub)
	return nil
}

func (s *Store) FindSubscriber(_ context.Context, productID, email string) (*domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscribers {
		if sub.ProductID == productID && sub.Email == email {
			found := sub
			return &found, nil
		}
	}
	return nil, domain.NotFound("subscription", email)
}

func (s *Store) subscribersWhere(match func(domain.Subscriber) bool) []domain.Subscriber {
	out := []domain.Subscriber{}
	for _, sub := range s.subscribers {
		if match(sub) {
			out = append(out, sub)
		}
	}
	return out
}

func (s *Store) ListSubscribersByProduct(_ context.Context, productID string, page store.Page) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return paginate(s.subscribersWhere(func(sub domain.Subscriber) bool { return sub.ProductID == productID }), page), nil
}

func (s *Store) ListSubscribersByEmail(_ context.Context, email string) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribersWhere(func(sub domain.Subscriber) bool { return sub.Email == email }), nil
}

func (s *Store) ListSubscribers(_ context.Context, page store.Page) ([]domain.Subscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.subscribersWhere(func(domain.Subscriber) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubscribedAt.After(out[j].SubscribedAt) })
	return paginate(out, page), nil
}

func (s *Store) DeleteSubscriber(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscribers {
		if sub.ID == id {
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return nil
		}
	}
	return domain.NotFound("subscriber", id)
}

func (s *Store) InsertJobAudit(_ context.Context, a *domain.JobAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = domain.JobQueued
	}
	s.audits = append(s.audits, *a)
	return nil
}

func (s *Store) auditIndex(id string) int {
	for i := range s.audits {
		if s.audits[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) MarkJobSubmitted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.auditIndex(id)
	if i < 0 {
		return domain.NotFound("job", id)
	}
	s.audits[i].SubmittedAt = &at
	return nil
}

func (s *Store) ListUnsubmittedJobs(_ context.Context, createdBefore time.Time) ([]domain.JobAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.JobAudit{}
	for _, a := range s.audits {
		if a.SubmittedAt == nil && a.CreatedAt.Before(createdBefore) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveJobResult(_ context.Context, r *domain.JobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auditIndex(r.JobID) < 0 {
		return domain.NotFound("job", r.JobID)
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	s.results[r.JobID] = *r
	return nil
}

func (s *Store) record(a domain.JobAudit) domain.JobRecord {
	if r, ok := s.results[a.ID]; ok {
		return domain.MergeJob(a, &r)
	}
	return domain.MergeJob(a, nil)
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.auditIndex(id)
	if i < 0 {
		return nil, domain.NotFound("job", id)
	}
	rec := s.record(s.audits[i])
	return &rec, nil
}

func (s *Store) FilterJobs(_ context.Context, f domain.JobFilter) ([]domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.JobRecord{}
	for _, a := range s.audits {
		if rec := s.record(a); f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountJobs(ctx context.Context, f domain.JobFilter) (int, error) {
	jobs, err := s.FilterJobs(ctx, f)
	return len(jobs), err
}

func (s *Store) PurgeJobs(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.audits[:0]
	var n int64
	for _, a := range s.audits {
		if a.CreatedAt.Before(cutoff) {
			delete(s.results, a.ID)
			n++
			continue
		}
		kept = append(kept, a)
	}
	s.audits = kept
	return n, nil
}

func (s *Store) Stats(_ context.Context) (*store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &store.Stats{
		Products:    len(s.products),
		Subscribers: len(s.subscribers),
		PriceLogs:   len(s.logs),
		Changes:     map[domain.ChangeType]int{},
		Jobs:        map[domain.JobStatus]int{},
	}
	for _, e := range s.logs {
		st.Changes[e.ChangeType]++
	}
	for _, a := range s.audits {
		st.Jobs[s.record(a).Status]++
	}
	return st, nil
}
