package pipeline

import (
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionSendEmail        ActionType = "send_email"
	ActionScheduleReminder ActionType = "schedule_reminder"
	ActionUpdateStatus     ActionType = "update_status"
	ActionGenerateReport   ActionType = "generate_report"
)

type Trigger string

const (
	TriggerStageStart         Trigger = "stage_start"
	TriggerNoResponse3Days    Trigger = "no_response_3_days"
	TriggerInterviewScheduled Trigger = "interview_scheduled"
	TriggerOutcomeFinalized   Trigger = "outcome_finalized"
)

const noResponseWindow = 72 * time.Hour

type ActionParams struct {
	ReminderType   string        `json:"reminder_type,omitempty"`
	ReminderOffset time.Duration `json:"reminder_offset,omitempty"`
	Priority       string        `json:"priority,omitempty"`
	Template       string        `json:"template,omitempty"`
	Report         string        `json:"report,omitempty"`
}

// AutomatedAction fires at most once per pipeline. Executed never goes back
// to false.
type AutomatedAction struct {
	ID         string       `json:"id"`
	Type       ActionType   `json:"type"`
	Trigger    Trigger      `json:"trigger"`
	Params     ActionParams `json:"params"`
	Executed   bool         `json:"executed"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty"`
}

// FiredAction is handed to the caller so it can carry out side effects that
// live outside the pipeline (email, reports, broadcasts).
type FiredAction struct {
	PipelineID string
	Stage      StageName
	Action     AutomatedAction
}

func newAction(t ActionType, trig Trigger, params ActionParams) AutomatedAction {
	return AutomatedAction{ID: uuid.NewString(), Type: t, Trigger: trig, Params: params}
}

func DefaultStages() []Stage {
	out := make([]Stage, 0, len(stageOrder))
	for _, name := range stageOrder {
		out = append(out, Stage{Name: name, Status: StagePending, Actions: defaultActions(name)})
	}
	return out
}

func defaultActions(name StageName) []AutomatedAction {
	switch name {
	case StageAnalysis:
		return []AutomatedAction{
			newAction(ActionGenerateReport, TriggerStageStart, ActionParams{Report: "match_report"}),
		}
	case StageOutreach:
		return []AutomatedAction{
			newAction(ActionScheduleReminder, TriggerStageStart, ActionParams{
				ReminderType: "check_inbox", ReminderOffset: 48 * time.Hour, Priority: "medium",
			}),
			newAction(ActionScheduleReminder, TriggerNoResponse3Days, ActionParams{
				ReminderType: "review_outreach", Priority: "high",
			}),
		}
	case StageInterview:
		return []AutomatedAction{
			newAction(ActionSendEmail, TriggerInterviewScheduled, ActionParams{Template: "interview_confirmation"}),
			newAction(ActionScheduleReminder, TriggerInterviewScheduled, ActionParams{
				ReminderType: "interview_preparation", ReminderOffset: 24 * time.Hour, Priority: "high",
			}),
		}
	case StageNegotiation:
		return []AutomatedAction{
			newAction(ActionGenerateReport, TriggerStageStart, ActionParams{Report: "offer_summary"}),
		}
	case StageCompletion:
		return []AutomatedAction{
			newAction(ActionUpdateStatus, TriggerOutcomeFinalized, ActionParams{}),
			newAction(ActionGenerateReport, TriggerOutcomeFinalized, ActionParams{Report: "outcome_report"}),
		}
	default:
		return nil
	}
}

// EvaluateTrigger reports whether trig holds for p at now.
func EvaluateTrigger(trig Trigger, p *Pipeline, now time.Time) bool {
	if p == nil {
		return false
	}
	switch trig {
	case TriggerStageStart:
		return true
	case TriggerNoResponse3Days:
		if !p.Status.InOutreach() || p.Tracking.Replies > 0 || p.Tracking.SentAt == nil {
			return false
		}
		return now.Sub(*p.Tracking.SentAt) >= noResponseWindow
	case TriggerInterviewScheduled:
		return p.Status == StatusInterviewScheduled
	case TriggerOutcomeFinalized:
		return p.Outcome != nil
	default:
		return false
	}
}

// RunActions executes every pending action of the current stage whose
// trigger holds. Reminder actions are applied to p directly; the rest are
// returned for the caller.
func (p *Pipeline) RunActions(now time.Time) []FiredAction {
	st := p.Stage(p.CurrentStage)
	if st == nil {
		return nil
	}
	fired := make([]FiredAction, 0)
	for i := range st.Actions {
		a := &st.Actions[i]
		if a.Executed || !EvaluateTrigger(a.Trigger, p, now) {
			continue
		}
		a.Executed = true
		a.ExecutedAt = timePtr(now)
		if a.Type == ActionScheduleReminder {
			p.addReminder(a.Params, now)
		}
		fired = append(fired, FiredAction{PipelineID: p.ID, Stage: st.Name, Action: *a})
	}
	if len(fired) > 0 {
		p.UpdatedAt = now
	}
	return fired
}
