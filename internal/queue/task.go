package queue

import (
	"encoding/json"
	"fmt"
)

type TaskType string

const (
	// TaskReconcilePayment re-reads a purchase from the gateway and applies
	// its status to the booking.
	TaskReconcilePayment TaskType = "reconcile_payment"
)

type Task struct {
	Type          TaskType `json:"type"`
	PurchaseID    string   `json:"purchaseId,omitempty"`
	BookingNumber string   `json:"bookingNumber,omitempty"`
	// Source records what queued the task (webhook, schedule, poll).
	Source string `json:"source,omitempty"`
}

func (t Task) values() map[string]any {
	return map[string]any{
		"type":          string(t.Type),
		"purchaseId":    t.PurchaseID,
		"bookingNumber": t.BookingNumber,
		"source":        t.Source,
	}
}

// DecodeTask reads a task from stream message values.
func DecodeTask(values map[string]interface{}) (Task, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Task{}, err
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	return t, nil
}
