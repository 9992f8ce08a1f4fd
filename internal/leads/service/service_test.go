package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/dispatch"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leads/transport"
	"leadcrm_backend/internal/queue/memory"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testIntakeConfig struct {
	window  time.Duration
	landing string
}

func (c testIntakeConfig) GetDuplicateWindow() time.Duration { return c.window }
func (c testIntakeConfig) GetLandingDomain() string          { return c.landing }

type scheduledDispatch struct {
	leadID  int64
	attempt int
	delay   time.Duration
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []scheduledDispatch
	err   error
}

func (f *fakeScheduler) ScheduleDispatch(_ context.Context, leadID int64, attempt int, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scheduledDispatch{leadID, attempt, delay})
	return f.err
}

func newTestService(t *testing.T, cfg testIntakeConfig, extra ...brands.Brand) (*Service, *repository.MemoryStore, *fakeScheduler) {
	t.Helper()
	registry := brands.NewDefaultRegistry()
	for _, b := range extra {
		require.NoError(t, registry.Upsert(b))
	}
	store := repository.NewMemoryStore()
	sched := &fakeScheduler{}
	return New(store, registry, sched, nil, validator.New(), cfg, logger.Nop()), store, sched
}

func validRequest() transport.SubmitLeadRequest {
	return transport.SubmitLeadRequest{
		BrandID:   brands.DefaultBrandID,
		FirstName: "A",
		LastName:  "B",
		Email:     "a@b.com",
		PhoneCC:   "+1",
		Phone:     "5551234567",
		Country:   "US",
	}
}

func validationDetails(t *testing.T, err error) transport.ValidationDetails {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %v", err)
	require.Equal(t, apperr.KindValidation, appErr.Kind)
	details, ok := appErr.Details.(transport.ValidationDetails)
	require.True(t, ok, "expected ValidationDetails, got %T", appErr.Details)
	return details
}

func TestSubmitQueuesLead(t *testing.T) {
	svc, store, sched := newTestService(t, testIntakeConfig{landing: "promo.example"})

	req := validRequest()
	req.Phone = "2025550143"
	lead, err := svc.Submit(context.Background(), req, transport.RequestMeta{ClientIP: "203.0.113.9"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), lead.ID)
	assert.Equal(t, domain.StatusQueued, lead.Status)
	assert.Equal(t, "28215", lead.AffID)
	assert.Equal(t, "1000", lead.OfferID)
	assert.Equal(t, "promo.example", lead.AffSub3)
	assert.Equal(t, "203.0.113.9", lead.UserIP)
	assert.Equal(t, "+12025550143", lead.PhoneE164)

	stored, err := store.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, stored.Status)

	require.Len(t, sched.calls, 1)
	assert.Equal(t, scheduledDispatch{leadID: lead.ID, attempt: 1, delay: 0}, sched.calls[0])
}

func TestSubmitUnknownOrInactiveBrandIsNotPersisted(t *testing.T) {
	svc, store, sched := newTestService(t, testIntakeConfig{}, brands.Brand{ID: "off", Name: "Off", Active: false})

	req := validRequest()
	req.BrandID = "nope"
	_, err := svc.Submit(context.Background(), req, transport.RequestMeta{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	req.BrandID = "off"
	_, err = svc.Submit(context.Background(), req, transport.RequestMeta{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "brand inactive")

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
	assert.Empty(t, sched.calls)
}

func TestSubmitEnumeratesExactlyMissingFields(t *testing.T) {
	svc, store, _ := newTestService(t, testIntakeConfig{})

	req := validRequest()
	req.LastName = "  "
	req.Phone = ""
	req.Country = ""

	_, err := svc.Submit(context.Background(), req, transport.RequestMeta{})
	details := validationDetails(t, err)

	assert.Equal(t, []string{"last_name", "phone", "country"}, details.Missing)
	assert.Empty(t, details.Invalid)

	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestSubmitReportsInvalidFormats(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{})

	req := validRequest()
	req.Email = "not-an-email"
	req.PhoneCC = "1"
	req.Phone = "55-12"
	req.Country = "zz"

	_, err := svc.Submit(context.Background(), req, transport.RequestMeta{})
	details := validationDetails(t, err)

	assert.Empty(t, details.Missing)
	assert.Equal(t, []string{"email", "country", "phonecc", "phone"}, details.Invalid)
}

func TestSubmitAcceptsLowercaseCountry(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{})

	req := validRequest()
	req.Country = "us"
	lead, err := svc.Submit(context.Background(), req, transport.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "US", lead.Country)
}

func TestSubmitEnforcesCountryAllowList(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{}, brands.Brand{
		ID: "eu", Name: "EU only", Active: true, CountryRestrictions: []string{"de", "NL"},
	})

	req := validRequest()
	req.BrandID = "eu"
	_, err := svc.Submit(context.Background(), req, transport.RequestMeta{})
	details := validationDetails(t, err)
	assert.Equal(t, []string{"country"}, details.Invalid)

	req.Country = "DE"
	_, err = svc.Submit(context.Background(), req, transport.RequestMeta{})
	require.NoError(t, err)
}

func TestSubmitRejectsDuplicateWithinWindow(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{window: 24 * time.Hour})

	_, err := svc.Submit(context.Background(), validRequest(), transport.RequestMeta{})
	require.NoError(t, err)

	req := validRequest()
	req.Email = "A@B.com"
	_, err = svc.Submit(context.Background(), req, transport.RequestMeta{})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestSubmitHashesPassword(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{})

	req := validRequest()
	req.Password = "hunter22"
	lead, err := svc.Submit(context.Background(), req, transport.RequestMeta{})
	require.NoError(t, err)

	require.NotEmpty(t, lead.PasswordHash)
	assert.NotEqual(t, "hunter22", lead.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(lead.PasswordHash), []byte("hunter22")))
}

func TestSubmitSucceedsWhenEnqueueFails(t *testing.T) {
	svc, store, sched := newTestService(t, testIntakeConfig{})
	sched.err = errors.New("redis down")

	lead, err := svc.Submit(context.Background(), validRequest(), transport.RequestMeta{})
	require.NoError(t, err)

	stored, err := store.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, stored.Status)
}

func TestUpdateStatusRules(t *testing.T) {
	svc, _, sched := newTestService(t, testIntakeConfig{})
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validRequest(), transport.RequestMeta{})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, lead.ID, "converted", "")
	assert.True(t, apperr.Is(err, apperr.KindConflict), "converted only from sent")

	_, err = svc.UpdateStatus(ctx, lead.ID, "bogus", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	updated, err := svc.UpdateStatus(ctx, lead.ID, "failed", "manual stop")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, updated.Status)
	assert.Equal(t, "manual stop", updated.LastError)

	updated, err = svc.UpdateStatus(ctx, lead.ID, "queued", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, updated.Status)
	assert.Len(t, sched.calls, 2, "requeue schedules a delivery")

	_, err = svc.UpdateStatus(ctx, 999, "sent", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

type retryDispatchConfig struct{}

func (retryDispatchConfig) GetDispatchMaxAttempts() int         { return 3 }
func (retryDispatchConfig) GetDispatchRetryBase() time.Duration { return time.Second }
func (retryDispatchConfig) GetDispatchTimeout() time.Duration   { return time.Second }
func (retryDispatchConfig) GetStaleQueuedAfter() time.Duration  { return 10 * time.Minute }
func (retryDispatchConfig) GetSweepInterval() time.Duration     { return time.Minute }

type acceptingSender struct {
	calls int32
}

func (s *acceptingSender) Send(context.Context, dispatch.TrackerRequest) (dispatch.TrackerResponse, error) {
	atomic.AddInt32(&s.calls, 1)
	return dispatch.TrackerResponse{StatusCode: 200}, nil
}

func TestRequeueFromErrorStartsFreshAttemptBudget(t *testing.T) {
	ctx := context.Background()
	registry := brands.NewDefaultRegistry()
	require.NoError(t, registry.Upsert(brands.Brand{ID: "2001", Name: "Acme", Active: true, TrackerURL: "https://tracker.example/postback"}))
	store := repository.NewMemoryStore()
	sched := &fakeScheduler{}
	svc := New(store, registry, sched, nil, validator.New(), testIntakeConfig{}, logger.Nop())

	lead, err := store.Create(ctx, domain.Lead{BrandID: "2001", Email: "a@b.com", Status: domain.StatusQueued})
	require.NoError(t, err)
	lead.Status = domain.StatusError
	lead.Attempts = 3
	lead.LastError = "tracker returned status 502"
	_, err = store.SaveState(ctx, lead, domain.StatusQueued)
	require.NoError(t, err)

	requeued, err := svc.UpdateStatus(ctx, lead.ID, "queued", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, requeued.Status)
	assert.Equal(t, 0, requeued.Attempts)
	assert.Empty(t, requeued.LastError)
	require.Len(t, sched.calls, 1)
	assert.Equal(t, scheduledDispatch{leadID: lead.ID, attempt: 1, delay: 0}, sched.calls[0])

	sender := &acceptingSender{}
	q := memory.New(time.Second, logger.Nop())
	t.Cleanup(func() { _ = q.Close() })
	d := dispatch.New(store, registry, dispatch.NewScheduler(q), sender, nil, retryDispatchConfig{}, logger.Nop())
	require.NoError(t, d.Dispatch(ctx, lead.ID))

	assert.Equal(t, int32(1), atomic.LoadInt32(&sender.calls))
	delivered, err := store.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, delivered.Status)
	assert.Equal(t, 1, delivered.Attempts)
}

func TestRedispatchResetsAttempts(t *testing.T) {
	svc, store, sched := newTestService(t, testIntakeConfig{})
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validRequest(), transport.RequestMeta{})
	require.NoError(t, err)

	lead.Status = domain.StatusError
	lead.Attempts = 3
	lead.LastError = "tracker returned status 502"
	_, err = store.SaveState(ctx, lead, domain.StatusQueued)
	require.NoError(t, err)

	requeued, err := svc.Redispatch(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, requeued.Status)
	assert.Equal(t, 0, requeued.Attempts)
	assert.Empty(t, requeued.LastError)
	assert.Len(t, sched.calls, 2)

	requeued.Status = domain.StatusSent
	_, err = store.SaveState(ctx, requeued, domain.StatusQueued)
	require.NoError(t, err)
	_, err = svc.Redispatch(ctx, lead.ID)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestStatsCountsEveryStatus(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		req := validRequest()
		req.Email = []string{"x@y.com", "z@y.com"}[i]
		_, err := svc.Submit(ctx, req, transport.RequestMeta{})
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[domain.StatusQueued])
	assert.Equal(t, 0, stats.ByStatus[domain.StatusSent])
	assert.Len(t, stats.ByStatus, len(domain.AllStatuses))
	assert.Equal(t, 1, stats.ActiveBrands)
}

func TestAttemptsAndDelete(t *testing.T) {
	svc, _, _ := newTestService(t, testIntakeConfig{})
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validRequest(), transport.RequestMeta{})
	require.NoError(t, err)

	attempts, err := svc.Attempts(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	require.NoError(t, svc.Delete(ctx, lead.ID))
	assert.True(t, apperr.Is(svc.Delete(ctx, lead.ID), apperr.KindNotFound))

	_, err = svc.Attempts(ctx, lead.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
