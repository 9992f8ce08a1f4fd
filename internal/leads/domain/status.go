package domain

import "strings"

// Status is the delivery state of a lead.
type Status string

const (
	StatusNew        Status = "new"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusError      Status = "error"
	StatusConverted  Status = "converted"
)

// statusFailedAlias is accepted on input and stored as StatusError.
const statusFailedAlias = "failed"

var statusRank = map[Status]int{
	StatusNew:        0,
	StatusQueued:     1,
	StatusProcessing: 2,
	StatusSent:       3,
	StatusError:      3,
	StatusConverted:  4,
}

// AllStatuses lists statuses in pipeline order.
var AllStatuses = []Status{StatusNew, StatusQueued, StatusProcessing, StatusSent, StatusError, StatusConverted}

// ParseStatus resolves user input to a known status.
func ParseStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == statusFailedAlias {
		return StatusError, true
	}
	st := Status(s)
	_, ok := statusRank[st]
	return st, ok
}

// IsKnown reports whether s is one of the defined statuses.
func (s Status) IsKnown() bool {
	_, ok := statusRank[s]
	return ok
}

// IsDelivered reports whether the lead reached the tracker.
func (s Status) IsDelivered() bool {
	return s == StatusSent || s == StatusConverted
}

// CanTransition reports whether a lead may move from one status to another.
// Statuses only move forward, with two exceptions: a retry or redispatch
// puts a processing or errored lead back to queued, and converted is
// reachable only from sent.
func CanTransition(from, to Status) bool {
	if !from.IsKnown() || !to.IsKnown() {
		return false
	}
	if from == to {
		return true
	}
	if to == StatusQueued && (from == StatusProcessing || from == StatusError) {
		return true
	}
	if to == StatusConverted {
		return from == StatusSent
	}
	return statusRank[to] > statusRank[from]
}
