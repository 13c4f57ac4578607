package pipeline_test

import (
	"testing"

	"outreach-engine/internal/domain/pipeline"
)

// ── ParseStatus ────────────────────────────────────────────────────────────

func TestParseStatus_ValidValues(t *testing.T) {
	for _, s := range pipeline.AllStatuses() {
		got, err := pipeline.ParseStatus(string(s))
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %q", s, got)
		}
	}
}

func TestParseStatus_Invalid(t *testing.T) {
	for _, s := range []string{"", "HIRED", "proposal-sent"} {
		if _, err := pipeline.ParseStatus(s); err == nil {
			t.Errorf("ParseStatus(%q) expected error", s)
		}
	}
}

// ── IsTransitionAllowed ────────────────────────────────────────────────────

func TestIsTransitionAllowed_MainPath(t *testing.T) {
	path := []pipeline.Status{
		pipeline.StatusDiscovered,
		pipeline.StatusAnalyzing,
		pipeline.StatusProposalGenerated,
		pipeline.StatusProposalSent,
		pipeline.StatusFollowUpSent,
		pipeline.StatusResponseReceived,
		pipeline.StatusInterviewScheduled,
		pipeline.StatusInterviewCompleted,
		pipeline.StatusOfferReceived,
		pipeline.StatusOfferAccepted,
	}
	for i := 0; i+1 < len(path); i++ {
		if !pipeline.IsTransitionAllowed(path[i], path[i+1]) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be true", path[i], path[i+1])
		}
	}
}

func TestIsTransitionAllowed_FollowUpResponseLoop(t *testing.T) {
	if !pipeline.IsTransitionAllowed(pipeline.StatusFollowUpSent, pipeline.StatusResponseReceived) {
		t.Error("follow_up_sent → response_received should be allowed")
	}
	if !pipeline.IsTransitionAllowed(pipeline.StatusResponseReceived, pipeline.StatusFollowUpSent) {
		t.Error("response_received → follow_up_sent should be allowed")
	}
	if !pipeline.IsTransitionAllowed(pipeline.StatusProposalSent, pipeline.StatusResponseReceived) {
		t.Error("proposal_sent → response_received should be allowed")
	}
}

func TestIsTransitionAllowed_SideExits(t *testing.T) {
	for _, from := range pipeline.AllStatuses() {
		if from.IsTerminal() {
			continue
		}
		for _, to := range []pipeline.Status{pipeline.StatusApplicationRejected, pipeline.StatusWithdrawn} {
			if !pipeline.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be true", from, to)
			}
		}
	}
}

func TestIsTransitionAllowed_FromTerminal(t *testing.T) {
	for _, from := range pipeline.AllStatuses() {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range pipeline.AllStatuses() {
			if pipeline.IsTransitionAllowed(from, to) {
				t.Errorf("IsTransitionAllowed(%s → %s) should be false (terminal state)", from, to)
			}
		}
	}
}

func TestIsTransitionAllowed_SkipAndBackwards(t *testing.T) {
	cases := []struct {
		from pipeline.Status
		to   pipeline.Status
	}{
		{pipeline.StatusDiscovered, pipeline.StatusProposalSent},
		{pipeline.StatusAnalyzing, pipeline.StatusProposalSent},
		{pipeline.StatusProposalSent, pipeline.StatusProposalGenerated},
		{pipeline.StatusFollowUpSent, pipeline.StatusProposalSent},
		{pipeline.StatusInterviewScheduled, pipeline.StatusOfferReceived},
		{pipeline.StatusResponseReceived, pipeline.StatusOfferAccepted},
	}
	for _, c := range cases {
		if pipeline.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s → %s) should be false", c.from, c.to)
		}
	}
}

// ── StageFor ───────────────────────────────────────────────────────────────

func TestStageFor(t *testing.T) {
	want := map[pipeline.Status]pipeline.StageName{
		pipeline.StatusDiscovered:          pipeline.StageDiscovery,
		pipeline.StatusAnalyzing:           pipeline.StageAnalysis,
		pipeline.StatusProposalGenerated:   pipeline.StageProposal,
		pipeline.StatusProposalSent:        pipeline.StageOutreach,
		pipeline.StatusFollowUpSent:        pipeline.StageOutreach,
		pipeline.StatusResponseReceived:    pipeline.StageInterview,
		pipeline.StatusInterviewScheduled:  pipeline.StageInterview,
		pipeline.StatusInterviewCompleted:  pipeline.StageInterview,
		pipeline.StatusOfferReceived:       pipeline.StageNegotiation,
		pipeline.StatusOfferAccepted:       pipeline.StageCompletion,
		pipeline.StatusOfferRejected:       pipeline.StageCompletion,
		pipeline.StatusApplicationRejected: pipeline.StageCompletion,
		pipeline.StatusWithdrawn:           pipeline.StageCompletion,
	}
	for s, stage := range want {
		if got := pipeline.StageFor(s); got != stage {
			t.Errorf("StageFor(%s) = %s, want %s", s, got, stage)
		}
	}
}
