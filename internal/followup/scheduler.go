// Package followup keeps the time-ordered set of pending follow-up emails.
//
// A single loop calls Due on every tick; there are no per-item timers, so
// stopping the loop is enough to cancel everything.
package followup

import (
	"sort"
	"sync"
	"time"

	"outreach-engine/internal/domain"
	"outreach-engine/internal/domain/pipeline"

	"github.com/google/uuid"
)

type Condition string

const (
	ConditionNoResponse    Condition = "no_response"
	ConditionOpenedNoReply Condition = "opened_no_reply"
	ConditionFinal         Condition = "final_follow_up"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusSent      Status = "sent"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type FollowUp struct {
	ID         string     `json:"id"`
	PipelineID string     `json:"pipeline_id"`
	Sequence   int        `json:"sequence"`
	Condition  Condition  `json:"condition"`
	DueAt      time.Time  `json:"due_at"`
	Status     Status     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

func (f FollowUp) IsFinal() bool {
	return f.Condition == ConditionFinal
}

// ConditionsFor assigns a condition to each of n follow-ups: the first waits
// for silence, the last is the final nudge and the ones in between require an
// open without a reply.
func ConditionsFor(n int) []Condition {
	out := make([]Condition, n)
	for i := range out {
		switch {
		case i == 0:
			out[i] = ConditionNoResponse
		case i == n-1:
			out[i] = ConditionFinal
		default:
			out[i] = ConditionOpenedNoReply
		}
	}
	return out
}

// SkipReason re-checks a follow-up's condition against the pipeline's
// latest state. An empty result means the follow-up should be sent.
func SkipReason(c Condition, p *pipeline.Pipeline) string {
	if p == nil {
		return "pipeline missing"
	}
	if p.IsTerminal() {
		return "pipeline finished"
	}
	if p.Tracking.Suppressed() {
		return "recipient bounced or unsubscribed"
	}
	if !p.Status.InOutreach() {
		return "pipeline past outreach (" + string(p.Status) + ")"
	}
	switch c {
	case ConditionNoResponse, ConditionFinal:
		if p.Tracking.Replies > 0 {
			return "reply already received"
		}
	case ConditionOpenedNoReply:
		if p.Tracking.Replies > 0 {
			return "reply already received"
		}
		if p.Tracking.Opens == 0 {
			return "proposal not opened"
		}
	default:
		return "unknown condition " + string(c)
	}
	return ""
}

type Scheduler struct {
	mu    sync.Mutex
	items []*FollowUp
	byID  map[string]*FollowUp
}

func NewScheduler() *Scheduler {
	return &Scheduler{byID: map[string]*FollowUp{}}
}

// Schedule plans one follow-up per offset, measured from sentAt.
func (s *Scheduler) Schedule(pipelineID string, sentAt time.Time, offsets []time.Duration) []FollowUp {
	conds := ConditionsFor(len(offsets))
	out := make([]FollowUp, 0, len(offsets))

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, off := range offsets {
		f := &FollowUp{
			ID:         uuid.NewString(),
			PipelineID: pipelineID,
			Sequence:   i + 1,
			Condition:  conds[i],
			DueAt:      sentAt.Add(off),
			Status:     StatusScheduled,
		}
		s.insertLocked(f)
		out = append(out, *f)
	}
	return out
}

// Restore re-inserts a previously scheduled follow-up, e.g. after a restart.
func (s *Scheduler) Restore(f FollowUp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[f.ID]; ok {
		return
	}
	cp := f
	s.insertLocked(&cp)
}

func (s *Scheduler) insertLocked(f *FollowUp) {
	idx := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].DueAt.After(f.DueAt)
	})
	s.items = append(s.items, nil)
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = f
	s.byID[f.ID] = f
}

// Due claims every scheduled follow-up whose due time has passed, in due
// order, and marks them running so a concurrent tick cannot claim them again.
func (s *Scheduler) Due(now time.Time) []FollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FollowUp, 0)
	for _, f := range s.items {
		if f.DueAt.After(now) {
			break
		}
		if f.Status != StatusScheduled {
			continue
		}
		f.Status = StatusRunning
		out = append(out, *f)
	}
	return out
}

func (s *Scheduler) Complete(id string, status Status, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	f.Status = status
	f.Reason = reason
	f.ExecutedAt = &now
	s.compactLocked()
	return nil
}

// Requeue returns a claimed follow-up that never ran to the scheduled set.
// It reports false when the follow-up is unknown or no longer running.
func (s *Scheduler) Requeue(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byID[id]
	if !ok || f.Status != StatusRunning {
		return false
	}
	f.Status = StatusScheduled
	return true
}

// CancelPipeline cancels every follow-up of a pipeline that is scheduled or
// claimed. A send already in flight still records its own result.
func (s *Scheduler) CancelPipeline(pipelineID, reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.items {
		if f.PipelineID != pipelineID || (f.Status != StatusScheduled && f.Status != StatusRunning) {
			continue
		}
		f.Status = StatusCancelled
		f.Reason = reason
		n++
	}
	s.compactLocked()
	return n
}

func (s *Scheduler) ForPipeline(pipelineID string) []FollowUp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FollowUp, 0)
	for _, f := range s.byID {
		if f.PipelineID == pipelineID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.items {
		if f.Status == StatusScheduled {
			n++
		}
	}
	return n
}

// compactLocked drops finished entries from the time index. They stay
// reachable through byID for history queries.
func (s *Scheduler) compactLocked() {
	kept := s.items[:0]
	for _, f := range s.items {
		if f.Status == StatusScheduled || f.Status == StatusRunning {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = nil
	}
	s.items = kept
}
