package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func fastConfig() Config {
	return Config{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func serverBusy() error {
	return &openai.APIError{HTTPStatusCode: 503, Message: "service unavailable"}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastConfig(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransient(t *testing.T) {
	calls := 0
	v, err := Do(context.Background(), fastConfig(), "test", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", serverBusy()
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("model not found")
	calls := 0
	_, err := Do(context.Background(), fastConfig(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{Attempts: 2, BaseDelay: time.Millisecond}, "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, serverBusy()
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, fastConfig(), "test", func(ctx context.Context) (int, error) {
		calls++
		return 0, serverBusy()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"cancelled", context.Canceled, false},
		{"openai 429", &openai.APIError{HTTPStatusCode: 429}, true},
		{"openai 400", &openai.APIError{HTTPStatusCode: 400}, false},
		{"grpc unavailable", status.Error(codes.Unavailable, "index down"), true},
		{"grpc invalid argument", status.Error(codes.InvalidArgument, "bad vector"), false},
		{"connection reset string", errors.New("read tcp: connection reset by peer"), true},
		{"overloaded string", errors.New("api error: Overloaded"), true},
		{"plain error", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestConfig_DelayCapped(t *testing.T) {
	cfg := Config{Attempts: 5, BaseDelay: time.Second, MaxDelay: 2 * time.Second}.withDefaults()
	assert.LessOrEqual(t, cfg.delay(10), 2*time.Second)
	assert.GreaterOrEqual(t, cfg.delay(1), time.Second)
}
