package ai

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/proposal"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func sampleInputs() (opportunity.Opportunity, opportunity.Profile) {
	o := opportunity.Opportunity{
		ID:           "opp-1",
		Title:        "Backend Engineer",
		Organization: "Acme",
		Industry:     "fintech",
		Description:  "Build payment services.",
		Skills:       []string{"Go", "Postgres"},
	}
	p := opportunity.Profile{
		ID:              "p-1",
		Name:            "Sam",
		Skills:          []string{"Go"},
		Industries:      []string{"fintech"},
		Experience:      opportunity.TierMid,
		YearsExperience: 4,
	}
	return o, p
}

func TestGenerateProposal(t *testing.T) {
	cases := []struct {
		name    string
		output  string
		callErr error
		wantErr bool
		subject string
		points  int
	}{
		{
			name:    "plain json",
			output:  `{"subject":"Go help for Acme","content":"Hi team","key_points":["Go","fintech",""],"call_to_action":"Chat?"}`,
			subject: "Go help for Acme",
			points:  2,
		},
		{
			name:    "fenced json with chatter",
			output:  "Sure!\n```json\n{\"subject\":\"Hello\",\"content\":\"Body\"}\n```",
			subject: "Hello",
		},
		{name: "missing content", output: `{"subject":"Hello"}`, wantErr: true},
		{name: "not json", output: "I cannot help with that", wantErr: true},
		{name: "call fails", callErr: errors.New("quota exceeded"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var prompt string
			g := newGenerator(func(ctx context.Context, p string) (string, error) {
				prompt = p
				return tc.output, tc.callErr
			}, "test-model", quietLogger())

			o, p := sampleInputs()
			got, err := g.GenerateProposal(context.Background(), o, p)
			if !strings.Contains(prompt, "Backend Engineer") || !strings.Contains(prompt, "Go, Postgres") {
				t.Fatalf("prompt misses opportunity details: %q", prompt)
			}
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Subject != tc.subject || got.Source != proposal.SourceAI || len(got.KeyPoints) != tc.points {
				t.Fatalf("unexpected proposal %+v", got)
			}
		})
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), config.AIConfig{}, quietLogger()); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestPromptTruncatesDescription(t *testing.T) {
	o, p := sampleInputs()
	o.Description = strings.Repeat("x", maxDescriptionChars+500)
	if got := strings.Count(buildPrompt(o, p), "x"); got > maxDescriptionChars+10 {
		t.Fatalf("description not truncated: %d chars", got)
	}
}
