package domain

import "leadcrm_backend/platform/events"

// LeadReceived is published after a lead is stored at intake.
type LeadReceived struct {
	events.BaseEvent
	LeadID  int64  `json:"leadId"`
	BrandID string `json:"brandId"`
}

func (LeadReceived) EventName() string { return "leads.received" }

// LeadStatusChanged is published for every persisted status move.
type LeadStatusChanged struct {
	events.BaseEvent
	LeadID int64  `json:"leadId"`
	From   Status `json:"from"`
	To     Status `json:"to"`
}

func (LeadStatusChanged) EventName() string { return "leads.status_changed" }

// LeadDeliveryAttempted is published once per delivery try.
type LeadDeliveryAttempted struct {
	events.BaseEvent
	Attempt DeliveryAttempt `json:"attempt"`
	Mock    bool            `json:"mock"`
}

func (LeadDeliveryAttempted) EventName() string { return "leads.delivery_attempted" }
