package pipeline

import (
	"slices"
	"time"

	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/proposal"

	"github.com/google/uuid"
)

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

type Stage struct {
	Name        StageName         `json:"name"`
	Status      StageStatus       `json:"status"`
	Actions     []AutomatedAction `json:"actions"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

type Reminder struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	DueAt      time.Time  `json:"due_at"`
	Priority   string     `json:"priority"`
	Completed  bool       `json:"completed"`
	SurfacedAt *time.Time `json:"surfaced_at,omitempty"`
}

type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	At        time.Time   `json:"at"`
	Feedback  string      `json:"feedback,omitempty"`
	Salary    float64     `json:"salary,omitempty"`
	StartDate *time.Time  `json:"start_date,omitempty"`
}

type Note struct {
	At   time.Time `json:"at"`
	From Status    `json:"from,omitempty"`
	To   Status    `json:"to,omitempty"`
	Text string    `json:"text"`
}

type TrackingKind string

const (
	TrackingOpened       TrackingKind = "opened"
	TrackingClicked      TrackingKind = "clicked"
	TrackingReplied      TrackingKind = "replied"
	TrackingBounced      TrackingKind = "bounced"
	TrackingUnsubscribed TrackingKind = "unsubscribed"
)

func ParseTrackingKind(s string) (TrackingKind, bool) {
	switch k := TrackingKind(s); k {
	case TrackingOpened, TrackingClicked, TrackingReplied, TrackingBounced, TrackingUnsubscribed:
		return k, true
	}
	return "", false
}

type Tracking struct {
	TrackingID       string     `json:"tracking_id,omitempty"`
	MessageID        string     `json:"message_id,omitempty"`
	ThreadID         string     `json:"thread_id,omitempty"`
	SentAt           *time.Time `json:"sent_at,omitempty"`
	Opens            int        `json:"opens"`
	Clicks           int        `json:"clicks"`
	Replies          int        `json:"replies"`
	Bounces          int        `json:"bounces"`
	Unsubscribed     bool       `json:"unsubscribed"`
	FollowUps        int        `json:"follow_ups"`
	// FollowUpsHandled is the highest follow-up sequence that reached a
	// final state (sent, skipped or failed). Restores resume after it.
	FollowUpsHandled int        `json:"follow_ups_handled"`
	LastEventAt      *time.Time `json:"last_event_at,omitempty"`
}

func (t *Tracking) MarkFollowUpHandled(seq int) {
	if seq > t.FollowUpsHandled {
		t.FollowUpsHandled = seq
	}
}

// Suppressed reports whether no further outreach may be sent.
func (t Tracking) Suppressed() bool {
	return t.Bounces > 0 || t.Unsubscribed
}

type Pipeline struct {
	ID            string                  `json:"id"`
	OpportunityID string                  `json:"opportunity_id"`
	ProfileID     string                  `json:"profile_id"`
	Opportunity   opportunity.Opportunity `json:"opportunity"`
	Profile       opportunity.Profile     `json:"profile"`
	Status        Status                  `json:"status"`
	CurrentStage  StageName               `json:"current_stage"`
	Stages        []Stage                 `json:"stages"`
	Reminders     []Reminder              `json:"reminders"`
	Notes         []Note                  `json:"notes"`
	MatchScore    int                     `json:"match_score"`
	Proposal      *proposal.Proposal      `json:"proposal,omitempty"`
	Tracking      Tracking                `json:"tracking"`
	Outcome       *Outcome                `json:"outcome,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func New(o opportunity.Opportunity, profileID string, score int, now time.Time) *Pipeline {
	p := &Pipeline{
		ID:            uuid.NewString(),
		OpportunityID: o.ID,
		ProfileID:     profileID,
		Opportunity:   o,
		Status:        StatusDiscovered,
		CurrentStage:  StageFor(StatusDiscovered),
		Stages:        DefaultStages(),
		Reminders:     make([]Reminder, 0),
		Notes:         make([]Note, 0),
		MatchScore:    score,
		Tracking:      Tracking{TrackingID: uuid.NewString()},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.startStage(p.CurrentStage, now)
	p.Notes = append(p.Notes, Note{At: now, To: StatusDiscovered, Text: "pipeline created"})
	return p
}

func (p *Pipeline) IsTerminal() bool {
	return p.Outcome != nil || p.Status.IsTerminal()
}

func (p *Pipeline) Stage(name StageName) *Stage {
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i]
		}
	}
	return nil
}

func (p *Pipeline) AddNote(text string, now time.Time) {
	p.Notes = append(p.Notes, Note{At: now, Text: text})
	p.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of the owning registry.
func (p *Pipeline) Clone() *Pipeline {
	if p == nil {
		return nil
	}
	out := *p
	out.Opportunity.Skills = slices.Clone(p.Opportunity.Skills)
	out.Profile.Skills = slices.Clone(p.Profile.Skills)
	out.Profile.Industries = slices.Clone(p.Profile.Industries)
	out.Stages = slices.Clone(p.Stages)
	for i, st := range out.Stages {
		st.Actions = slices.Clone(st.Actions)
		for j := range st.Actions {
			st.Actions[j].ExecutedAt = copyTime(st.Actions[j].ExecutedAt)
		}
		st.StartedAt = copyTime(st.StartedAt)
		st.CompletedAt = copyTime(st.CompletedAt)
		out.Stages[i] = st
	}
	out.Reminders = slices.Clone(p.Reminders)
	for i := range out.Reminders {
		out.Reminders[i].SurfacedAt = copyTime(out.Reminders[i].SurfacedAt)
	}
	out.Notes = slices.Clone(p.Notes)
	if p.Proposal != nil {
		pr := *p.Proposal
		pr.KeyPoints = slices.Clone(p.Proposal.KeyPoints)
		out.Proposal = &pr
	}
	out.Tracking.SentAt = copyTime(p.Tracking.SentAt)
	out.Tracking.LastEventAt = copyTime(p.Tracking.LastEventAt)
	if p.Outcome != nil {
		oc := *p.Outcome
		oc.StartDate = copyTime(p.Outcome.StartDate)
		out.Outcome = &oc
	}
	return &out
}

func (p *Pipeline) startStage(name StageName, now time.Time) {
	st := p.Stage(name)
	if st == nil {
		return
	}
	st.Status = StageInProgress
	if st.StartedAt == nil {
		st.StartedAt = timePtr(now)
	}
	st.CompletedAt = nil
}

func (p *Pipeline) closeStage(name StageName, status StageStatus, now time.Time) {
	st := p.Stage(name)
	if st == nil {
		return
	}
	st.Status = status
	st.CompletedAt = timePtr(now)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
