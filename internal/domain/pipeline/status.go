// Package pipeline defines the application lifecycle state machine.
//
// Valid status graph:
//
//	discovered ──► analyzing ──► proposal_generated ──► proposal_sent ──► follow_up_sent
//	                                                        │                 ▲  │
//	                                                        └──► response_received ◄┘
//	                                                                  │
//	       interview_scheduled ◄──────────────────────────────────────┘
//	          │        ▲
//	          ▼        │
//	       interview_completed ──► offer_received ──► offer_accepted | offer_rejected
//
// Every non-terminal status may also exit to application_rejected or withdrawn.
// offer_accepted, offer_rejected, application_rejected and withdrawn are terminal.
package pipeline

import (
	"fmt"

	"outreach-engine/internal/domain"
)

type Status string

const (
	StatusDiscovered          Status = "discovered"
	StatusAnalyzing           Status = "analyzing"
	StatusProposalGenerated   Status = "proposal_generated"
	StatusProposalSent        Status = "proposal_sent"
	StatusFollowUpSent        Status = "follow_up_sent"
	StatusResponseReceived    Status = "response_received"
	StatusInterviewScheduled  Status = "interview_scheduled"
	StatusInterviewCompleted  Status = "interview_completed"
	StatusOfferReceived       Status = "offer_received"
	StatusOfferAccepted       Status = "offer_accepted"
	StatusOfferRejected       Status = "offer_rejected"
	StatusApplicationRejected Status = "application_rejected"
	StatusWithdrawn           Status = "withdrawn"
)

var allStatuses = []Status{
	StatusDiscovered,
	StatusAnalyzing,
	StatusProposalGenerated,
	StatusProposalSent,
	StatusFollowUpSent,
	StatusResponseReceived,
	StatusInterviewScheduled,
	StatusInterviewCompleted,
	StatusOfferReceived,
	StatusOfferAccepted,
	StatusOfferRejected,
	StatusApplicationRejected,
	StatusWithdrawn,
}

// forwardTransitions lists the non side-exit edges. Side exits are handled in
// IsTransitionAllowed.
var forwardTransitions = map[Status][]Status{
	StatusDiscovered:         {StatusAnalyzing},
	StatusAnalyzing:          {StatusProposalGenerated},
	StatusProposalGenerated:  {StatusProposalSent},
	StatusProposalSent:       {StatusFollowUpSent, StatusResponseReceived},
	StatusFollowUpSent:       {StatusResponseReceived},
	StatusResponseReceived:   {StatusFollowUpSent, StatusInterviewScheduled},
	StatusInterviewScheduled: {StatusInterviewCompleted},
	StatusInterviewCompleted: {StatusOfferReceived, StatusInterviewScheduled},
	StatusOfferReceived:      {StatusOfferAccepted, StatusOfferRejected},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	for _, known := range allStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", domain.NewValidationError("status", fmt.Sprintf("unknown pipeline status %q", s))
}

func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusOfferAccepted, StatusOfferRejected, StatusApplicationRejected, StatusWithdrawn:
		return true
	}
	return false
}

// InOutreach reports whether the pipeline is waiting on a first reply.
func (s Status) InOutreach() bool {
	return s == StatusProposalSent || s == StatusFollowUpSent
}

func IsTransitionAllowed(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusApplicationRejected || to == StatusWithdrawn {
		return true
	}
	for _, s := range forwardTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type StageName string

const (
	StageDiscovery   StageName = "discovery"
	StageAnalysis    StageName = "analysis"
	StageProposal    StageName = "proposal"
	StageOutreach    StageName = "outreach"
	StageInterview   StageName = "interview"
	StageNegotiation StageName = "negotiation"
	StageCompletion  StageName = "completion"
)

var stageOrder = []StageName{
	StageDiscovery,
	StageAnalysis,
	StageProposal,
	StageOutreach,
	StageInterview,
	StageNegotiation,
	StageCompletion,
}

// StageFor is the fixed status → stage projection.
func StageFor(s Status) StageName {
	switch s {
	case StatusDiscovered:
		return StageDiscovery
	case StatusAnalyzing:
		return StageAnalysis
	case StatusProposalGenerated:
		return StageProposal
	case StatusProposalSent, StatusFollowUpSent:
		return StageOutreach
	case StatusResponseReceived, StatusInterviewScheduled, StatusInterviewCompleted:
		return StageInterview
	case StatusOfferReceived:
		return StageNegotiation
	default:
		return StageCompletion
	}
}

type OutcomeKind string

const (
	OutcomeHired     OutcomeKind = "hired"
	OutcomeRejected  OutcomeKind = "rejected"
	OutcomeWithdrawn OutcomeKind = "withdrawn"
	OutcomeExpired   OutcomeKind = "expired"
)

func ParseOutcomeKind(s string) (OutcomeKind, error) {
	switch k := OutcomeKind(s); k {
	case OutcomeHired, OutcomeRejected, OutcomeWithdrawn, OutcomeExpired:
		return k, nil
	}
	return "", domain.NewValidationError("outcome", fmt.Sprintf("unknown outcome %q", s))
}

func outcomeForStatus(s Status) OutcomeKind {
	switch s {
	case StatusOfferAccepted:
		return OutcomeHired
	case StatusOfferRejected, StatusApplicationRejected:
		return OutcomeRejected
	default:
		return OutcomeWithdrawn
	}
}

// terminalStatusFor picks the terminal status that records kind, given where
// the pipeline currently is.
func terminalStatusFor(kind OutcomeKind, current Status) Status {
	switch kind {
	case OutcomeHired:
		return StatusOfferAccepted
	case OutcomeRejected:
		if current == StatusOfferReceived {
			return StatusOfferRejected
		}
		return StatusApplicationRejected
	default:
		return StatusWithdrawn
	}
}
