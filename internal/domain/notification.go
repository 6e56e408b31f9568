package domain

import "context"

// ReminderBatchResult summarises one reminder tick.
// swagger:model ReminderBatchResult
type ReminderBatchResult struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// NotificationService sends one reminder per registration for events starting soon.
type NotificationService interface {
	SendDueReminders(ctx context.Context) (*ReminderBatchResult, error)
}
