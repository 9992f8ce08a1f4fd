package queue

import (
	"encoding/json"
	"fmt"
)

const TaskLeadDispatch = "leads.dispatch"

type LeadDispatchPayload struct {
	LeadID int64 `json:"leadId"`
	// Attempt is the delivery attempt this task performs, starting at 1.
	Attempt int `json:"attempt"`
}

func NewLeadDispatchTask(payload LeadDispatchPayload) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{Type: TaskLeadDispatch, Payload: data}, nil
}

func ParseLeadDispatchPayload(task Task) (LeadDispatchPayload, error) {
	var payload LeadDispatchPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return LeadDispatchPayload{}, err
	}
	if payload.LeadID <= 0 {
		return LeadDispatchPayload{}, fmt.Errorf("invalid lead id %d", payload.LeadID)
	}
	return payload, nil
}
