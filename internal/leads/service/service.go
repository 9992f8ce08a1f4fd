// Package service implements lead intake and lead administration.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadcrm_backend/internal/brands"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leads/transport"
	"leadcrm_backend/platform/apperr"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/events"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/metrics"
	"leadcrm_backend/platform/phone"
	"leadcrm_backend/platform/sanitize"
	"leadcrm_backend/platform/validator"

	"golang.org/x/crypto/bcrypt"
)

const (
	msgLeadNotFound     = "lead not found"
	msgValidationFailed = "validation failed"
)

// BrandRegistry is the brand lookup intake needs.
type BrandRegistry interface {
	Get(id string) (brands.Brand, error)
	CountActive() int
}

// DispatchScheduler queues a delivery attempt.
type DispatchScheduler interface {
	ScheduleDispatch(ctx context.Context, leadID int64, attempt int, delay time.Duration) error
}

type Service struct {
	store     repository.Store
	brands    BrandRegistry
	scheduler DispatchScheduler
	bus       events.Bus
	val       *validator.Validator
	log       *logger.Logger

	duplicateWindow time.Duration
	landingDomain   string
	now             func() time.Time
}

func New(store repository.Store, registry BrandRegistry, scheduler DispatchScheduler, bus events.Bus, val *validator.Validator, cfg config.IntakeConfig, log *logger.Logger) *Service {
	return &Service{
		store:           store,
		brands:          registry,
		scheduler:       scheduler,
		bus:             bus,
		val:             val,
		log:             log,
		duplicateWindow: cfg.GetDuplicateWindow(),
		landingDomain:   cfg.GetLandingDomain(),
		now:             time.Now,
	}
}

// Submit validates, stores and queues a new lead. Nothing is stored when
// the brand is unknown or inactive or the submission is invalid.
func (s *Service) Submit(ctx context.Context, req transport.SubmitLeadRequest, meta transport.RequestMeta) (domain.Lead, error) {
	if req.BrandID == "" {
		metrics.LeadRejected("unknown_brand")
		return domain.Lead{}, apperr.Validation("brand_id is required").
			WithDetails(transport.ValidationDetails{Missing: []string{"brand_id"}, Invalid: []string{}})
	}

	brand, err := s.brands.Get(req.BrandID)
	if err != nil {
		metrics.LeadRejected("unknown_brand")
		return domain.Lead{}, apperr.Validation("unknown brand")
	}
	if !brand.Active {
		metrics.LeadRejected("inactive_brand")
		return domain.Lead{}, apperr.Validation("brand inactive")
	}

	if details := validateSubmission(s.val, brand, req); !details.Empty() {
		metrics.LeadRejected("validation")
		return domain.Lead{}, apperr.Validation(msgValidationFailed).WithDetails(details)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if s.duplicateWindow > 0 && email != "" {
		dup, err := s.store.ExistsRecent(ctx, brand.ID, email, s.now().Add(-s.duplicateWindow))
		if err != nil {
			s.log.DatabaseError("check duplicate lead", err)
			return domain.Lead{}, apperr.Internal("check duplicate lead", err)
		}
		if dup {
			metrics.LeadRejected("duplicate")
			return domain.Lead{}, apperr.Conflict("duplicate lead")
		}
	}

	lead, err := s.buildLead(brand, req, meta)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Email = email

	lead, err = s.store.Create(ctx, lead)
	if err != nil {
		s.log.DatabaseError("create lead", err)
		return domain.Lead{}, apperr.Internal("store lead", err)
	}

	if err := s.scheduler.ScheduleDispatch(ctx, lead.ID, 1, 0); err != nil {
		// Lead is committed as queued; the stale-queue sweeper retries the enqueue.
		s.log.WithContext(ctx).Error("enqueue dispatch failed", "lead_id", lead.ID, "error", err)
	}

	metrics.LeadReceived(brand.ID)
	s.publish(ctx, domain.LeadReceived{BaseEvent: events.NewBaseEvent(), LeadID: lead.ID, BrandID: brand.ID})
	s.log.WithContext(ctx).Info("lead received", "lead_id", lead.ID, "brand_id", brand.ID)
	return lead, nil
}

func (s *Service) buildLead(brand brands.Brand, req transport.SubmitLeadRequest, meta transport.RequestMeta) (domain.Lead, error) {
	lead := domain.Lead{
		BrandID:     brand.ID,
		FirstName:   sanitize.Text(req.FirstName),
		LastName:    sanitize.Text(req.LastName),
		PhoneCC:     strings.TrimSpace(req.PhoneCC),
		Phone:       strings.TrimSpace(req.Phone),
		Country:     strings.ToUpper(strings.TrimSpace(req.Country)),
		AffID:       firstNonEmpty(brand.AffID, req.AffID),
		OfferID:     firstNonEmpty(brand.OfferID, req.OfferID),
		AffSub:      sanitize.Text(req.AffSub),
		AffSub2:     sanitize.Text(req.AffSub2),
		AffSub3:     firstNonEmpty(sanitize.Text(req.AffSub3), s.landingDomain),
		AffSub4:     sanitize.Text(req.AffSub4),
		AffSub5:     sanitize.Text(req.AffSub5),
		OrigOffer:   sanitize.Text(req.OrigOffer),
		UTMSource:   sanitize.Text(req.UTMSource),
		UTMMedium:   sanitize.Text(req.UTMMedium),
		UTMCampaign: sanitize.Text(req.UTMCampaign),
		UserIP:      meta.ClientIP,
		Referer:     sanitize.Text(firstNonEmpty(req.Referer, meta.Referer)),
		Status:      domain.StatusQueued,
	}
	lead.PhoneE164 = phone.NormalizeE164(lead.PhoneCC, lead.Phone)

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.Lead{}, apperr.Validation("password cannot be stored").
				WithDetails(transport.ValidationDetails{Missing: []string{}, Invalid: []string{"password"}})
		}
		lead.PasswordHash = string(hash)
	}
	return lead, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, s.mapStoreErr("get lead", err)
	}
	return lead, nil
}

func (s *Service) List(ctx context.Context, params repository.ListParams) ([]domain.Lead, repository.ListParams, error) {
	params = params.Normalize()
	leads, err := s.store.List(ctx, params)
	if err != nil {
		return nil, params, s.mapStoreErr("list leads", err)
	}
	return leads, params, nil
}

// UpdateStatus is the admin override. Moving a lead back to queued
// schedules a new delivery; coming from error it also starts a fresh
// attempt budget, as Redispatch does.
func (s *Service) UpdateStatus(ctx context.Context, id int64, rawStatus, errMsg string) (domain.Lead, error) {
	to, ok := domain.ParseStatus(rawStatus)
	if !ok {
		return domain.Lead{}, apperr.Validation("unknown status").
			WithDetails(transport.ValidationDetails{Missing: []string{}, Invalid: []string{"status"}})
	}

	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, s.mapStoreErr("get lead", err)
	}

	from := lead.Status
	if !domain.CanTransition(from, to) {
		return domain.Lead{}, apperr.Conflict("illegal status transition").
			WithDetails(map[string]domain.Status{"from": from, "to": to})
	}

	now := s.now().UTC()
	lead.Status = to
	switch to {
	case domain.StatusSent:
		if lead.SentAt == nil {
			lead.SentAt = &now
		}
		lead.LastError = ""
	case domain.StatusConverted:
		lead.ConvertedAt = &now
	case domain.StatusError:
		if errMsg != "" {
			lead.LastError = sanitize.Text(errMsg)
		}
	case domain.StatusQueued:
		lead.NextAttemptAt = nil
		if from == domain.StatusError {
			lead.Attempts = 0
			lead.LastError = ""
		}
	}

	saved, err := s.store.SaveState(ctx, lead, from)
	if err != nil {
		return domain.Lead{}, s.mapStoreErr("update lead status", err)
	}

	if from != to {
		s.publish(ctx, domain.LeadStatusChanged{BaseEvent: events.NewBaseEvent(), LeadID: id, From: from, To: to})
		if to == domain.StatusQueued {
			if err := s.scheduler.ScheduleDispatch(ctx, id, saved.Attempts+1, 0); err != nil {
				s.log.WithContext(ctx).Error("enqueue dispatch failed", "lead_id", id, "error", err)
			}
		}
	}
	return saved, nil
}

// Redispatch resets the attempt counter and queues a fresh delivery.
func (s *Service) Redispatch(ctx context.Context, id int64) (domain.Lead, error) {
	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Lead{}, s.mapStoreErr("get lead", err)
	}
	if lead.Status.IsDelivered() {
		return domain.Lead{}, apperr.Conflict("lead already delivered")
	}

	from := lead.Status
	lead.Status = domain.StatusQueued
	lead.Attempts = 0
	lead.LastError = ""
	lead.NextAttemptAt = nil

	saved, err := s.store.SaveState(ctx, lead, from)
	if err != nil {
		return domain.Lead{}, s.mapStoreErr("requeue lead", err)
	}
	if from != domain.StatusQueued {
		s.publish(ctx, domain.LeadStatusChanged{BaseEvent: events.NewBaseEvent(), LeadID: id, From: from, To: domain.StatusQueued})
	}

	if err := s.scheduler.ScheduleDispatch(ctx, id, 1, 0); err != nil {
		return domain.Lead{}, apperr.Internal("enqueue dispatch", err)
	}
	return saved, nil
}

// Attempts returns the delivery log of a lead, newest first.
func (s *Service) Attempts(ctx context.Context, id int64) ([]domain.DeliveryAttempt, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, s.mapStoreErr("get lead", err)
	}
	attempts, err := s.store.ListAttempts(ctx, id)
	if err != nil {
		return nil, s.mapStoreErr("list delivery attempts", err)
	}
	return attempts, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return s.mapStoreErr("delete lead", err)
	}
	s.log.WithContext(ctx).Info("lead deleted", "lead_id", id)
	return nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return domain.Stats{}, s.mapStoreErr("count leads", err)
	}

	stats := domain.Stats{ByStatus: make(map[domain.Status]int, len(domain.AllStatuses)), ActiveBrands: s.brands.CountActive()}
	for _, st := range domain.AllStatuses {
		stats.ByStatus[st] = counts[st]
		stats.Total += counts[st]
	}
	return stats, nil
}

func (s *Service) mapStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msgLeadNotFound)
	case errors.Is(err, repository.ErrStatusChanged):
		return apperr.Conflict("lead was modified concurrently")
	default:
		s.log.DatabaseError(op, err)
		return apperr.Internal(op, err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
