package repository

import (
	"context"
	"errors"
	"time"

	"leadcrm_backend/internal/leads/domain"
)

var (
	ErrNotFound = errors.New("lead not found")
	// ErrStatusChanged is returned by SaveState when the stored status no
	// longer matches the caller's expectation.
	ErrStatusChanged = errors.New("lead status changed concurrently")
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// ListParams filters and pages lead listings. Zero values mean "any".
type ListParams struct {
	Status  domain.Status
	BrandID string
	Limit   int
	Offset  int
}

// Normalize clamps Limit into [1, MaxListLimit] and Offset to >= 0.
func (p ListParams) Normalize() ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultListLimit
	}
	if p.Limit > MaxListLimit {
		p.Limit = MaxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Store persists leads and their delivery attempts.
type Store interface {
	// Create inserts lead, assigning ID and timestamps.
	Create(ctx context.Context, lead domain.Lead) (domain.Lead, error)
	Get(ctx context.Context, id int64) (domain.Lead, error)
	// List returns leads newest first.
	List(ctx context.Context, params ListParams) ([]domain.Lead, error)
	Delete(ctx context.Context, id int64) error

	// SaveState writes status, attempts, last_error, sent_at and converted_at
	// when the stored status still equals expected.
	SaveState(ctx context.Context, lead domain.Lead, expected domain.Status) (domain.Lead, error)

	// ExistsRecent reports whether brandID already has a lead for email
	// created at or after since. Email comparison is case-insensitive.
	ExistsRecent(ctx context.Context, brandID, email string, since time.Time) (bool, error)
	// ListStaleQueued returns queued leads whose DueAt is before the cutoff.
	ListStaleQueued(ctx context.Context, before time.Time, limit int) ([]domain.Lead, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int, error)

	RecordAttempt(ctx context.Context, attempt domain.DeliveryAttempt) (domain.DeliveryAttempt, error)
	// ListAttempts returns attempts newest first.
	ListAttempts(ctx context.Context, leadID int64) ([]domain.DeliveryAttempt, error)

	Ping(ctx context.Context) error
}
