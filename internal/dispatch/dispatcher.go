// Package dispatch delivers queued leads to brand trackers, records every
// attempt and schedules retries with exponential backoff.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/queue"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/events"
	"leadcrm_backend/platform/logger"
)

const msgBrandNotConfigured = "brand not configured"

// BrandLookup resolves a brand by id.
type BrandLookup interface {
	Get(id string) (brands.Brand, error)
}

// Enqueuer is the producer half of queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task, delay time.Duration) error
}

// Scheduler turns "dispatch this lead later" into a queue task.
type Scheduler struct {
	q Enqueuer
}

func NewScheduler(q Enqueuer) *Scheduler {
	return &Scheduler{q: q}
}

// ScheduleDispatch enqueues a delivery of leadID after delay.
func (s *Scheduler) ScheduleDispatch(ctx context.Context, leadID int64, attempt int, delay time.Duration) error {
	task, err := queue.NewLeadDispatchTask(queue.LeadDispatchPayload{LeadID: leadID, Attempt: attempt})
	if err != nil {
		return err
	}
	return s.q.Enqueue(ctx, task, delay)
}

// Dispatcher processes lead.dispatch tasks.
type Dispatcher struct {
	store     repository.Store
	brands    BrandLookup
	scheduler *Scheduler
	sender    Sender
	bus       events.Bus
	log       *logger.Logger

	maxAttempts int
	retryBase   time.Duration
	timeout     time.Duration
	now         func() time.Time
}

func New(store repository.Store, brandLookup BrandLookup, scheduler *Scheduler, sender Sender, bus events.Bus, cfg config.DispatchConfig, log *logger.Logger) *Dispatcher {
	maxAttempts := cfg.GetDispatchMaxAttempts()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Dispatcher{
		store:       store,
		brands:      brandLookup,
		scheduler:   scheduler,
		sender:      sender,
		bus:         bus,
		log:         log,
		maxAttempts: maxAttempts,
		retryBase:   cfg.GetDispatchRetryBase(),
		timeout:     cfg.GetDispatchTimeout(),
		now:         time.Now,
	}
}

// Register binds the dispatcher to q.
func (d *Dispatcher) Register(q queue.Queue) {
	q.Handle(queue.TaskLeadDispatch, d.HandleTask)
}

// HandleTask is the queue.HandlerFunc for lead dispatch tasks.
func (d *Dispatcher) HandleTask(ctx context.Context, task queue.Task) error {
	payload, err := queue.ParseLeadDispatchPayload(task)
	if err != nil {
		return fmt.Errorf("parse dispatch payload: %w", err)
	}
	return d.Dispatch(ctx, payload.LeadID)
}

// Dispatch runs one delivery attempt for leadID. Delivery failures are
// handled here (retry or terminal error) and do not surface as errors;
// only store failures do.
func (d *Dispatcher) Dispatch(ctx context.Context, leadID int64) error {
	log := d.log.WithContext(ctx).With("lead_id", leadID)

	lead, err := d.store.Get(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("dispatch skipped: lead not found")
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case lead.Status.IsDelivered():
		log.Info("dispatch skipped: already delivered", "status", lead.Status)
		return nil
	case lead.Status == domain.StatusError:
		log.Info("dispatch skipped: lead in terminal error")
		return nil
	}

	brand, err := d.brands.Get(lead.BrandID)
	if err != nil {
		log.Error("dispatch failed: brand not configured", "brand_id", lead.BrandID)
		lead.LastError = msgBrandNotConfigured
		_, err := d.transition(ctx, lead, domain.StatusError)
		return ignoreRace(err)
	}

	if lead.Attempts >= d.maxAttempts {
		_, err := d.transition(ctx, lead, domain.StatusError)
		return ignoreRace(err)
	}

	lead.NextAttemptAt = nil
	lead, err = d.transition(ctx, lead, domain.StatusProcessing)
	if err != nil {
		return ignoreRace(err)
	}

	if brand.IsMock() {
		return d.deliverMock(ctx, lead, brand)
	}
	return d.deliver(ctx, lead, brand)
}

func (d *Dispatcher) deliverMock(ctx context.Context, lead domain.Lead, brand brands.Brand) error {
	now := d.now().UTC()
	lead.SentAt = &now
	lead.LastError = ""
	if _, err := d.transition(ctx, lead, domain.StatusSent); err != nil {
		return ignoreRace(err)
	}

	d.recordAttempt(ctx, domain.DeliveryAttempt{
		LeadID:        lead.ID,
		BrandID:       brand.ID,
		AttemptNumber: lead.Attempts + 1,
		Outcome:       domain.OutcomeSent,
		CreatedAt:     now,
	}, true)
	d.log.WithContext(ctx).DispatchAttempt(lead.ID, brand.ID, lead.Attempts+1, 0, nil)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, lead domain.Lead, brand brands.Brand) error {
	timeout := brand.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}

	req := TrackerRequest{
		URL:     brand.TrackerURL,
		Method:  brand.Method,
		Fields:  BuildPayload(lead, brand),
		Timeout: timeout,
	}
	if brand.HasAuth() {
		req.AuthType = brand.AuthType
		req.AuthToken = brand.AuthToken
		req.APIKeyHeader = brand.APIKeyHeader
	}
	resp, sendErr := d.sender.Send(ctx, req)

	attemptNo := lead.Attempts + 1
	lead.Attempts = attemptNo

	attempt := domain.DeliveryAttempt{
		LeadID:        lead.ID,
		BrandID:       brand.ID,
		AttemptNumber: attemptNo,
		DurationMs:    resp.Duration.Milliseconds(),
		ResponseBody:  resp.Body,
		CreatedAt:     d.now().UTC(),
	}
	if resp.StatusCode != 0 {
		code := resp.StatusCode
		attempt.HTTPStatus = &code
	}
	d.log.WithContext(ctx).DispatchAttempt(lead.ID, brand.ID, attemptNo, resp.StatusCode, sendErr)

	if sendErr == nil {
		attempt.Outcome = domain.OutcomeSent
		d.recordAttempt(ctx, attempt, false)

		now := d.now().UTC()
		lead.SentAt = &now
		lead.LastError = ""
		_, err := d.transition(ctx, lead, domain.StatusSent)
		return ignoreRace(err)
	}

	attempt.Outcome = domain.OutcomeFailed
	attempt.Error = sendErr.Error()
	d.recordAttempt(ctx, attempt, false)
	lead.LastError = sendErr.Error()

	if attemptNo >= d.maxAttempts {
		_, err := d.transition(ctx, lead, domain.StatusError)
		return ignoreRace(err)
	}

	delay := Backoff(d.retryBase, attemptNo)
	retryAt := d.now().UTC().Add(delay)
	lead.NextAttemptAt = &retryAt
	if _, err := d.transition(ctx, lead, domain.StatusQueued); err != nil {
		return ignoreRace(err)
	}

	if err := d.scheduler.ScheduleDispatch(ctx, lead.ID, attemptNo+1, delay); err != nil {
		// The lead stays queued; the stale-queue sweeper will pick it up.
		d.log.WithContext(ctx).Error("schedule retry failed", "lead_id", lead.ID, "error", err)
		return nil
	}
	d.log.WithContext(ctx).Info("retry scheduled", "lead_id", lead.ID, "attempt", attemptNo+1, "delay", delay.String())
	return nil
}

// transition persists lead in status to, guarded by the lead's current status.
func (d *Dispatcher) transition(ctx context.Context, lead domain.Lead, to domain.Status) (domain.Lead, error) {
	from := lead.Status
	if !domain.CanTransition(from, to) {
		return lead, fmt.Errorf("illegal transition %s -> %s", from, to)
	}

	lead.Status = to
	saved, err := d.store.SaveState(ctx, lead, from)
	if err != nil {
		return lead, err
	}

	if from != to && d.bus != nil {
		d.bus.Publish(ctx, domain.LeadStatusChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			From:      from,
			To:        to,
		})
	}
	return saved, nil
}

func (d *Dispatcher) recordAttempt(ctx context.Context, attempt domain.DeliveryAttempt, mock bool) {
	saved, err := d.store.RecordAttempt(ctx, attempt)
	if err != nil {
		d.log.WithContext(ctx).DatabaseError("record delivery attempt", err)
		saved = attempt
	}
	if d.bus != nil {
		d.bus.Publish(ctx, domain.LeadDeliveryAttempted{
			BaseEvent: events.NewBaseEvent(),
			Attempt:   saved,
			Mock:      mock,
		})
	}
}

// ignoreRace drops errors caused by another writer moving the lead first.
func ignoreRace(err error) error {
	if errors.Is(err, repository.ErrStatusChanged) || errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
