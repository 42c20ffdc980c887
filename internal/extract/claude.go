package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/resilience"
	"github.com/scopewell/scope-copilot/pkg/anthropic"
)

const systemPrompt = "You are extracting structured project scope fields from a user's message. " +
	"Return only a valid JSON object mapping field names to {\"value\": ..., \"confidence\": 0.0-1.0, \"reasoning\": \"...\"}. " +
	"Include only fields the message gives evidence for. Never invent values."

const userPromptTemplate = `Fields to fill:
%s

Current state (already inferred or confirmed; do not contradict confirmed values):
%s

User message:
%s

Return a JSON object keyed by field name.`

// zero disables sampling temperature so repeated extractions stay stable.
var zeroTemperature = 0.0

// ClaudeExtractor implements Extractor on top of the Anthropic messages
// API, rate-limited so bursts of concurrent sessions stay inside quota.
type ClaudeExtractor struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewClaudeExtractor builds an extractor. ratePerSecond bounds outbound
// calls across all sessions; zero disables limiting.
func NewClaudeExtractor(client anthropic.Client, modelID string, maxTokens int64, ratePerSecond float64) *ClaudeExtractor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return &ClaudeExtractor{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		limiter:   limiter,
	}
}

// Extract runs one extraction call. A deadline hit on the context comes
// back wrapped as model.ErrBackendTimeout so callers can degrade instead
// of failing the turn.
func (c *ClaudeExtractor) Extract(ctx context.Context, req Request) (*model.ExtractionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, wrapTimeout(err, "extract: rate limit wait")
	}

	resp, err := resilience.Do(ctx, resilience.Backend(), "anthropic.create_message",
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return c.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:       c.model,
				MaxTokens:   c.maxTokens,
				System:      systemPrompt,
				Messages:    []anthropic.Message{{Role: "user", Content: buildPrompt(req)}},
				Temperature: &zeroTemperature,
			})
		})
	if err != nil {
		return nil, wrapTimeout(err, "extract: create message")
	}

	candidates := parseCandidates(resp.Text, req.Schema)
	zap.L().Debug("extract: parsed candidates",
		zap.String("model", c.model),
		zap.Int("count", len(candidates)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)

	return &model.ExtractionResult{
		Candidates: candidates,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

func wrapTimeout(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return eris.Wrapf(model.ErrBackendTimeout, "%s: %v", msg, err)
	}
	return eris.Wrap(err, msg)
}

func buildPrompt(req Request) string {
	var fields strings.Builder
	for i := range req.Schema.Fields {
		f := &req.Schema.Fields[i]
		fmt.Fprintf(&fields, "- %s (%s", f.Name, f.Kind)
		if f.Required {
			fields.WriteString(", required")
		}
		if len(f.Enum) > 0 {
			fmt.Fprintf(&fields, ", one of: %s", strings.Join(f.Enum, " | "))
		}
		fields.WriteString(")\n")
	}

	return fmt.Sprintf(userPromptTemplate,
		fields.String(),
		formatSnapshot(req.Snapshot),
		req.Utterance,
	)
}

func formatSnapshot(snapshot map[string]model.Entry) string {
	if len(snapshot) == 0 {
		return "(empty)"
	}
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		e := snapshot[name]
		fmt.Fprintf(&b, "- %s: %v (confidence %.2f, %s)\n", name, e.Value, e.Confidence, e.Provenance)
	}
	return b.String()
}
