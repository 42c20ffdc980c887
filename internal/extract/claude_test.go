package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestExtract_ParsesResponse(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-test" && req.System != "" && len(req.Messages) == 1
	})).Return(&anthropic.MessageResponse{
		Text:  "```json\n{\"title\": {\"value\": \"task app\", \"confidence\": 0.8}}\n```",
		Usage: anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}, nil).Once()

	ext := NewClaudeExtractor(client, "claude-test", 1024, 0)
	res, err := ext.Extract(context.Background(), Request{
		Schema:    parseSchema(t),
		Utterance: "I want a task app",
	})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "title", res.Candidates[0].Field)
	assert.Equal(t, int64(100), res.Usage.InputTokens)

	client.AssertExpectations(t)
}

func TestExtract_DeadlineBecomesBackendTimeout(t *testing.T) {
	client := &mockAnthropicClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()

	ext := NewClaudeExtractor(client, "claude-test", 1024, 0)
	_, err := ext.Extract(context.Background(), Request{Schema: parseSchema(t), Utterance: "x"})
	assert.ErrorIs(t, err, model.ErrBackendTimeout)
}

func TestExtract_CancelledContext(t *testing.T) {
	client := &mockAnthropicClient{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ext := NewClaudeExtractor(client, "claude-test", 1024, 1)
	_, err := ext.Extract(ctx, Request{Schema: parseSchema(t), Utterance: "x"})
	assert.Error(t, err, "rate limiter wait respects cancellation")
	client.AssertNotCalled(t, "CreateMessage")
}
