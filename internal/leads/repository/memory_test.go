package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadcrm_backend/internal/leads/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCreateAssignsIncreasingIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	a, err := store.Create(ctx, domain.Lead{BrandID: "1000", Email: "a@b.com", Status: domain.StatusQueued})
	require.NoError(t, err)
	b, err := store.Create(ctx, domain.Lead{BrandID: "1000", Email: "c@d.com"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.Equal(t, domain.StatusNew, b.Status)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestMemoryStoreListFiltersAndPages(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		brand := "1000"
		if i%2 == 1 {
			brand = "2000"
		}
		_, err := store.Create(ctx, domain.Lead{BrandID: brand, Status: domain.StatusQueued})
		require.NoError(t, err)
	}

	all, err := store.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, int64(5), all[0].ID, "newest first")

	byBrand, err := store.List(ctx, ListParams{BrandID: "2000"})
	require.NoError(t, err)
	assert.Len(t, byBrand, 2)

	page, err := store.List(ctx, ListParams{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := store.List(ctx, ListParams{Status: domain.StatusSent})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreSaveStateChecksExpectedStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	lead, err := store.Create(ctx, domain.Lead{BrandID: "1000", Status: domain.StatusQueued})
	require.NoError(t, err)

	lead.Status = domain.StatusProcessing
	saved, err := store.SaveState(ctx, lead, domain.StatusQueued)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, saved.Status)

	lead.Status = domain.StatusSent
	_, err = store.SaveState(ctx, lead, domain.StatusQueued)
	assert.True(t, errors.Is(err, ErrStatusChanged))

	_, err = store.SaveState(ctx, domain.Lead{ID: 99}, domain.StatusQueued)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreExistsRecentIgnoresCase(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Create(ctx, domain.Lead{BrandID: "1000", Email: "Jane@Example.com"})
	require.NoError(t, err)

	found, err := store.ExistsRecent(ctx, "1000", "jane@example.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.ExistsRecent(ctx, "2000", "jane@example.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	found, err = store.ExistsRecent(ctx, "1000", "jane@example.com", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreStaleQueued(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	old, err := store.Create(ctx, domain.Lead{BrandID: "1000", Status: domain.StatusQueued})
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(30 * time.Minute) }
	_, err = store.Create(ctx, domain.Lead{BrandID: "1000", Status: domain.StatusQueued})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.Lead{BrandID: "1000", Status: domain.StatusSent})
	require.NoError(t, err)

	stale, err := store.ListStaleQueued(ctx, base.Add(10*time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestMemoryStoreAttemptsNewestFirstAndDeletedWithLead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	lead, err := store.Create(ctx, domain.Lead{BrandID: "1000"})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		_, err := store.RecordAttempt(ctx, domain.DeliveryAttempt{LeadID: lead.ID, BrandID: "1000", AttemptNumber: i, Outcome: domain.OutcomeFailed})
		require.NoError(t, err)
	}

	attempts, err := store.ListAttempts(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, 3, attempts[0].AttemptNumber)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusNew])

	require.NoError(t, store.Delete(ctx, lead.ID))
	assert.True(t, errors.Is(store.Delete(ctx, lead.ID), ErrNotFound))

	attempts, err = store.ListAttempts(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	_, err = store.RecordAttempt(ctx, domain.DeliveryAttempt{LeadID: lead.ID})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStoreStaleQueuedHonoursPendingRetry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	lead, err := store.Create(ctx, domain.Lead{BrandID: "1000", Status: domain.StatusProcessing})
	require.NoError(t, err)

	retryAt := base.Add(time.Hour)
	lead.Status = domain.StatusQueued
	lead.NextAttemptAt = &retryAt
	_, err = store.SaveState(ctx, lead, domain.StatusProcessing)
	require.NoError(t, err)

	stale, err := store.ListStaleQueued(ctx, base.Add(20*time.Minute), 50)
	require.NoError(t, err)
	assert.Empty(t, stale)

	stale, err = store.ListStaleQueued(ctx, retryAt.Add(time.Minute), 50)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, lead.ID, stale[0].ID)
}
