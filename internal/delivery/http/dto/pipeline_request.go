package dto

import "time"

type AdvancePipelineRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type FinalizePipelineRequest struct {
	Outcome   string     `json:"outcome"`
	Feedback  string     `json:"feedback"`
	Salary    float64    `json:"salary"`
	StartDate *time.Time `json:"start_date"`
	Note      string     `json:"note"`
}

type RetryPipelineRequest struct {
	Priority string `json:"priority"`
}

type TrackingEventRequest struct {
	Kind string `json:"kind"`
}

type MarkEventsReadRequest struct {
	IDs []string `json:"ids"`
}
