package domain

import "time"

// PipelineMetrics is the periodic snapshot exposed to operators.
type PipelineMetrics struct {
	Total            int            `json:"total"`
	Active           int            `json:"active"`
	Terminal         int            `json:"terminal"`
	ByStatus         map[string]int `json:"by_status"`
	ByOutcome        map[string]int `json:"by_outcome"`
	Sent             int            `json:"sent"`
	Replied          int            `json:"replied"`
	ResponseRate     float64        `json:"response_rate"`
	SentToday        int            `json:"sent_today"`
	DailyLimit       int            `json:"daily_limit"`
	QueueDepth       int            `json:"queue_depth"`
	InFlight         int            `json:"in_flight"`
	PendingFollowUps int            `json:"pending_follow_ups"`
	OpenReminders    int            `json:"open_reminders"`
	GeneratedAt      time.Time      `json:"generated_at"`
}
