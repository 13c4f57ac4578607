package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain/opportunity"
	"outreach-engine/internal/domain/proposal"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

const maxDescriptionChars = 6000

var errEmptyCompletion = errors.New("model returned an empty proposal")

const proposalPrompt = `
You write short, specific outreach emails for job and project applications.

### OPPORTUNITY
Title: %s
Organization: %s
Industry: %s
Required skills: %s
Description:
%s

### CANDIDATE
Name: %s
Experience: %s (%d years)
Skills: %s
Industries: %s

### INSTRUCTIONS
1. Write a subject line under 80 characters.
2. Write a body of at most 180 words that links the candidate's skills to the opportunity.
3. List two to four key points the body relies on.
4. End with a single call to action.
5. Output valid JSON only, no markdown fences.

### OUTPUT SCHEMA
{"subject": "...", "content": "...", "key_points": ["..."], "call_to_action": "..."}
`

type completeFunc func(ctx context.Context, prompt string) (string, error)

// Generator drafts proposals with a Gemini model through langchaingo.
type Generator struct {
	complete completeFunc
	model    string
	logger   *log.Logger
}

func NewGenerator(ctx context.Context, cfg config.AIConfig, logger *log.Logger) (*Generator, error) {
	if !cfg.Enabled() {
		return nil, errors.New("ai generator: GEMINI_API_KEY is not set")
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("ai generator: %w", err)
	}
	complete := func(ctx context.Context, prompt string) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, llm, prompt, llms.WithTemperature(0.4))
	}
	return newGenerator(complete, cfg.Model, logger), nil
}

func newGenerator(complete completeFunc, model string, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{complete: complete, model: model, logger: logger}
}

func (g *Generator) GenerateProposal(ctx context.Context, o opportunity.Opportunity, p opportunity.Profile) (proposal.Proposal, error) {
	raw, err := g.complete(ctx, buildPrompt(o, p))
	if err != nil {
		g.logger.Printf("component=ai model=%s opportunity_id=%s status=error err=%v", g.model, o.ID, err)
		return proposal.Proposal{}, err
	}
	prop, err := parseProposal(raw)
	if err != nil {
		g.logger.Printf("component=ai model=%s opportunity_id=%s status=invalid err=%v", g.model, o.ID, err)
		return proposal.Proposal{}, err
	}
	g.logger.Printf("component=ai model=%s opportunity_id=%s status=ok key_points=%d", g.model, o.ID, len(prop.KeyPoints))
	return prop, nil
}

// HealthCheck only verifies the client was configured; probing the model
// would spend tokens on every health tick.
func (g *Generator) HealthCheck(ctx context.Context) error {
	if g == nil || g.complete == nil {
		return errors.New("ai generator not configured")
	}
	return nil
}

func buildPrompt(o opportunity.Opportunity, p opportunity.Profile) string {
	desc := strings.TrimSpace(o.Description)
	if len(desc) > maxDescriptionChars {
		desc = desc[:maxDescriptionChars]
	}
	return fmt.Sprintf(proposalPrompt,
		o.Title, o.Organization, o.Industry, strings.Join(o.Skills, ", "), desc,
		p.Name, p.Experience, p.YearsExperience, strings.Join(p.Skills, ", "), strings.Join(p.Industries, ", "),
	)
}

type completion struct {
	Subject      string   `json:"subject"`
	Content      string   `json:"content"`
	KeyPoints    []string `json:"key_points"`
	CallToAction string   `json:"call_to_action"`
}

func parseProposal(raw string) (proposal.Proposal, error) {
	text := stripFences(raw)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var c completion
	if err := json.Unmarshal([]byte(text), &c); err != nil {
		return proposal.Proposal{}, fmt.Errorf("decode model output: %w", err)
	}
	c.Subject = strings.TrimSpace(c.Subject)
	c.Content = strings.TrimSpace(c.Content)
	if c.Subject == "" || c.Content == "" {
		return proposal.Proposal{}, errEmptyCompletion
	}
	points := make([]string, 0, len(c.KeyPoints))
	for _, kp := range c.KeyPoints {
		if kp = strings.TrimSpace(kp); kp != "" {
			points = append(points, kp)
		}
	}
	return proposal.Proposal{
		Subject:      c.Subject,
		Content:      c.Content,
		KeyPoints:    points,
		CallToAction: strings.TrimSpace(c.CallToAction),
		Source:       proposal.SourceAI,
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
