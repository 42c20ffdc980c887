package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Transient reports whether err is worth retrying. Context errors are
// never transient here: a hit deadline means the turn's budget is spent
// and the caller should degrade instead.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var anthErr *anthropicsdk.Error
	if errors.As(err, &anthErr) {
		return retryableStatus(anthErr.StatusCode)
	}
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.HTTPStatusCode)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Aborted, codes.DeadlineExceeded:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped client errors that lost their type on the way up.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"overloaded",
		"too many requests",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// retryableStatus covers rate limiting, transient 5xx, and the 529 the
// model API returns when overloaded.
func retryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	default:
		return false
	}
}
