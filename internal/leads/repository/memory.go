package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"leadcrm_backend/internal/leads/domain"
)

// MemoryStore keeps leads in process memory. Data is lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	leads     map[int64]domain.Lead
	attempts  map[int64][]domain.DeliveryAttempt
	nextID    int64
	attemptID int64
	now       func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads:    make(map[int64]domain.Lead),
		attempts: make(map[int64][]domain.DeliveryAttempt),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now().UTC()
	lead.ID = s.nextID
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = domain.StatusNew
	}
	s.leads[lead.ID] = lead
	return lead, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return lead, nil
}

func (s *MemoryStore) List(_ context.Context, params ListParams) ([]domain.Lead, error) {
	params = params.Normalize()

	s.mu.RLock()
	matched := make([]domain.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		if params.Status != "" && l.Status != params.Status {
			continue
		}
		if params.BrandID != "" && l.BrandID != params.BrandID {
			continue
		}
		matched = append(matched, l)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if params.Offset >= len(matched) {
		return []domain.Lead{}, nil
	}
	end := params.Offset + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[params.Offset:end], nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[id]; !ok {
		return ErrNotFound
	}
	delete(s.leads, id)
	delete(s.attempts, id)
	return nil
}

func (s *MemoryStore) SaveState(_ context.Context, lead domain.Lead, expected domain.Status) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leads[lead.ID]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	if current.Status != expected {
		return domain.Lead{}, ErrStatusChanged
	}

	current.Status = lead.Status
	current.Attempts = lead.Attempts
	current.LastError = lead.LastError
	current.SentAt = lead.SentAt
	current.ConvertedAt = lead.ConvertedAt
	current.NextAttemptAt = lead.NextAttemptAt
	current.UpdatedAt = s.now().UTC()
	s.leads[lead.ID] = current
	return current, nil
}

func (s *MemoryStore) ExistsRecent(_ context.Context, brandID, email string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.leads {
		if l.BrandID == brandID && strings.EqualFold(l.Email, email) && !l.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListStaleQueued(_ context.Context, before time.Time, limit int) ([]domain.Lead, error) {
	s.mu.RLock()
	stale := make([]domain.Lead, 0)
	for _, l := range s.leads {
		if l.Status == domain.StatusQueued && l.DueAt().Before(before) {
			stale = append(stale, l)
		}
	}
	s.mu.RUnlock()

	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.Status]int, len(domain.AllStatuses))
	for _, l := range s.leads {
		counts[l.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) RecordAttempt(_ context.Context, attempt domain.DeliveryAttempt) (domain.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[attempt.LeadID]; !ok {
		return domain.DeliveryAttempt{}, ErrNotFound
	}
	s.attemptID++
	attempt.ID = s.attemptID
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.now().UTC()
	}
	s.attempts[attempt.LeadID] = append(s.attempts[attempt.LeadID], attempt)
	return attempt, nil
}

func (s *MemoryStore) ListAttempts(_ context.Context, leadID int64) ([]domain.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.attempts[leadID]
	out := make([]domain.DeliveryAttempt, len(list))
	for i := range list {
		out[len(list)-1-i] = list[i]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
