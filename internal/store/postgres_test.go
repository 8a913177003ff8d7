package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestJobFilterClause(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		filter    domain.JobFilter
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "no filter",
			filter:    domain.JobFilter{},
			wantWhere: "",
			wantArgs:  []any{},
		},
		{
			name:      "status uses the merged execution status",
			filter:    domain.JobFilter{Status: domain.JobFailure},
			wantWhere: " WHERE COALESCE(r.status, a.status) = $1",
			wantArgs:  []any{"FAILURE"},
		},
		{
			name:      "date range only",
			filter:    domain.JobFilter{From: &from, To: &to},
			wantWhere: " WHERE a.created_at >= $1 AND a.created_at <= $2",
			wantArgs:  []any{from, to},
		},
		{
			name: "every field numbered in order",
			filter: domain.JobFilter{
				Kind:   domain.NotifyPriceChanged,
				Status: domain.JobRetry,
				From:   &from,
				To:     &to,
			},
			wantWhere: " WHERE a.kind = $1 AND COALESCE(r.status, a.status) = $2 AND a.created_at >= $3 AND a.created_at <= $4",
			wantArgs:  []any{string(domain.NotifyPriceChanged), "RETRY", from, to},
		},
		{
			name:      "kind and upper bound",
			filter:    domain.JobFilter{Kind: domain.NotifyProductRemoved, To: &to},
			wantWhere: " WHERE a.kind = $1 AND a.created_at <= $2",
			wantArgs:  []any{string(domain.NotifyProductRemoved), to},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := jobFilterClause(tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("inserting subscriber: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"other error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimitClause(t *testing.T) {
	tests := []struct {
		page Page
		want string
	}{
		{All, ""},
		{Page{Page: 1, PerPage: 20}, " LIMIT 20 OFFSET 0"},
		{Page{Page: 3, PerPage: 20}, " LIMIT 20 OFFSET 40"},
		{Page{Page: 0, PerPage: 5}, " LIMIT 5 OFFSET 0"},
	}

	for _, tt := range tests {
		if got := limitClause(tt.page); got != tt.want {
			t.Errorf("limitClause(%+v) = %q, want %q", tt.page, got, tt.want)
		}
	}
}
