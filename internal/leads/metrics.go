package leads

import (
	"context"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/events"
	"leadcrm_backend/platform/metrics"
)

// SubscribeMetrics feeds lead status and delivery events into Prometheus.
func SubscribeMetrics(bus events.Bus) {
	bus.Subscribe(domain.LeadStatusChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(domain.LeadStatusChanged); ok {
			metrics.StatusTransition(string(e.To))
		}
		return nil
	}))

	bus.Subscribe(domain.LeadDeliveryAttempted{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		e, ok := event.(domain.LeadDeliveryAttempted)
		if !ok {
			return nil
		}
		outcome := metrics.OutcomeFailed
		if e.Attempt.Outcome == domain.OutcomeSent {
			outcome = metrics.OutcomeSent
		}
		metrics.DispatchAttempt(e.Attempt.BrandID, outcome, time.Duration(e.Attempt.DurationMs)*time.Millisecond)
		return nil
	}))
}
