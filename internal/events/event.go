package events

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeJobDiscovered      Type = "job_discovered"
	TypeJobRejected        Type = "job_rejected"
	TypeProposalGenerated  Type = "proposal_generated"
	TypeEmailSent          Type = "email_sent"
	TypeResponseReceived   Type = "response_received"
	TypeInterviewScheduled Type = "interview_scheduled"
	TypeOfferReceived      Type = "offer_received"
	TypeStatusChanged      Type = "status_changed"
	TypeFollowUpSent       Type = "follow_up_sent"
	TypeFollowUpSkipped    Type = "follow_up_skipped"
	TypeReminderDue        Type = "reminder_due"
	TypeReportGenerated    Type = "report_generated"
	TypeTrackingReceived   Type = "tracking_received"
	TypeHealthCheck        Type = "health_check"
	TypeSystemError        Type = "system_error"
	TypeSystemWarning      Type = "system_warning"
)

// Payload is the closed set of event bodies. Only types in this package
// implement it, so a switch over Payload is exhaustive.
type Payload interface {
	eventType() Type
}

type JobDiscovered struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Score        int    `json:"score"`
	Priority     string `json:"priority"`
}

type JobRejected struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
	Score  int    `json:"score"`
}

type ProposalGenerated struct {
	Subject        string `json:"subject"`
	Source         string `json:"source"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

type EmailSent struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	MessageID string `json:"message_id"`
}

type ResponseReceived struct {
	Replies int `json:"replies"`
}

type InterviewScheduled struct {
	Note string `json:"note,omitempty"`
}

type OfferReceived struct {
	Note string `json:"note,omitempty"`
}

type StatusChanged struct {
	From string `json:"from"`
	To   string `json:"to"`
	Note string `json:"note,omitempty"`
}

type FollowUpSent struct {
	FollowUpID string `json:"follow_up_id"`
	Sequence   int    `json:"sequence"`
	Condition  string `json:"condition"`
	MessageID  string `json:"message_id"`
}

type FollowUpSkipped struct {
	FollowUpID string `json:"follow_up_id"`
	Sequence   int    `json:"sequence"`
	Condition  string `json:"condition"`
	Reason     string `json:"reason"`
}

type ReminderDue struct {
	ReminderID string    `json:"reminder_id"`
	Kind       string    `json:"kind"`
	DueAt      time.Time `json:"due_at"`
	Priority   string    `json:"priority"`
}

type ReportGenerated struct {
	Report string `json:"report"`
	Stage  string `json:"stage"`
	Body   string `json:"body,omitempty"`
}

type TrackingReceived struct {
	Kind       string `json:"kind"`
	TrackingID string `json:"tracking_id"`
}

type HealthCheck struct {
	Service Service      `json:"service"`
	State   ServiceState `json:"state"`
	Detail  string       `json:"detail,omitempty"`
}

type SystemError struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}

type SystemWarning struct {
	Component string `json:"component"`
	Message   string `json:"message"`
}

func (JobDiscovered) eventType() Type      { return TypeJobDiscovered }
func (JobRejected) eventType() Type        { return TypeJobRejected }
func (ProposalGenerated) eventType() Type  { return TypeProposalGenerated }
func (EmailSent) eventType() Type          { return TypeEmailSent }
func (ResponseReceived) eventType() Type   { return TypeResponseReceived }
func (InterviewScheduled) eventType() Type { return TypeInterviewScheduled }
func (OfferReceived) eventType() Type      { return TypeOfferReceived }
func (StatusChanged) eventType() Type      { return TypeStatusChanged }
func (FollowUpSent) eventType() Type       { return TypeFollowUpSent }
func (FollowUpSkipped) eventType() Type    { return TypeFollowUpSkipped }
func (ReminderDue) eventType() Type        { return TypeReminderDue }
func (ReportGenerated) eventType() Type    { return TypeReportGenerated }
func (TrackingReceived) eventType() Type   { return TypeTrackingReceived }
func (HealthCheck) eventType() Type        { return TypeHealthCheck }
func (SystemError) eventType() Type        { return TypeSystemError }
func (SystemWarning) eventType() Type      { return TypeSystemWarning }

type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	Payload       Payload   `json:"payload"`
	Timestamp     time.Time `json:"timestamp"`
	PipelineID    string    `json:"pipeline_id,omitempty"`
	OpportunityID string    `json:"opportunity_id,omitempty"`
}

func New(payload Payload, now time.Time) Event {
	e := Event{ID: uuid.NewString(), Payload: payload, Timestamp: now}
	if payload != nil {
		e.Type = payload.eventType()
	}
	return e
}

// For attaches the pipeline and opportunity the event is about.
func (e Event) For(pipelineID, opportunityID string) Event {
	e.PipelineID = pipelineID
	e.OpportunityID = opportunityID
	return e
}

// IsProblem reports whether the event signals a failure to operators.
func (e Event) IsProblem() bool {
	return e.Type == TypeSystemError || e.Type == TypeSystemWarning
}
