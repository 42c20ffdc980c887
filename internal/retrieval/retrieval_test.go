package retrieval

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopewell/scope-copilot/internal/model"
)

type stubRetriever struct {
	hits  []model.RetrievalHit
	err   error
	delay time.Duration
	calls int
}

func (s *stubRetriever) FindSimilar(ctx context.Context, probe string, k int) ([]model.RetrievalHit, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.hits, s.err
}

func TestAdapter_PassesThroughHits(t *testing.T) {
	want := []model.RetrievalHit{{Title: "CRM rebuild", Similarity: 0.91}}
	a := NewAdapter(&stubRetriever{hits: want}, 0)

	hits, degraded := a.FindSimilar(context.Background(), "crm", 3)
	assert.False(t, degraded)
	assert.Equal(t, want, hits)
}

func TestAdapter_AbsorbsBackendFailure(t *testing.T) {
	a := NewAdapter(&stubRetriever{err: errors.New("connection refused")}, 0)

	hits, degraded := a.FindSimilar(context.Background(), "crm", 3)
	assert.True(t, degraded)
	assert.Empty(t, hits)
}

func TestAdapter_TimeoutDegrades(t *testing.T) {
	a := NewAdapter(&stubRetriever{delay: time.Second}, 10*time.Millisecond)

	start := time.Now()
	hits, degraded := a.FindSimilar(context.Background(), "crm", 3)
	assert.True(t, degraded)
	assert.Empty(t, hits)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "bounded by the adapter timeout")
}

func TestAdapter_NilBackendAndEmptyProbe(t *testing.T) {
	a := NewAdapter(nil, 0)
	hits, degraded := a.FindSimilar(context.Background(), "crm", 3)
	assert.False(t, degraded, "no backend is not a degradation")
	assert.Empty(t, hits)

	stub := &stubRetriever{hits: []model.RetrievalHit{{Title: "x"}}}
	a = NewAdapter(stub, 0)
	_, _ = a.FindSimilar(context.Background(), "", 3)
	_, _ = a.FindSimilar(context.Background(), "crm", 0)
	assert.Zero(t, stub.calls, "empty probe or k skip the backend")
}

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantHost string
		wantPort int
		wantTLS  bool
		wantErr  bool
	}{
		{"rest port mapped to grpc", "http://localhost:6333", "localhost", 6334, false, false},
		{"explicit grpc port", "http://localhost:6334", "localhost", 6334, false, false},
		{"cloud https", "https://xyz.cloud.qdrant.io:6333", "xyz.cloud.qdrant.io", 6334, true, false},
		{"no port", "http://qdrant", "qdrant", 6334, false, false},
		{"garbage", "::::", "", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseQdrantURL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantTLS, useTLS)
		})
	}
}

func TestEmbeddingText(t *testing.T) {
	p := PastProject{
		Title:     "Inventory dashboard",
		Summary:   "Realtime stock levels",
		Platform:  "topcoder-development",
		TechStack: []string{"go", "react"},
	}
	text := p.EmbeddingText()
	assert.Contains(t, text, "Inventory dashboard")
	assert.Contains(t, text, "Realtime stock levels")
	assert.Contains(t, text, "go")
}

func TestLoadProjectsFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/projects.yaml"
	data := `projects:
  - title: CRM rebuild
    summary: Migrate a legacy CRM to the web
    platform: topcoder-development
    tech_stack: [go, vue]
    timeline_days: 14
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	projects, err := LoadProjectsFile(path)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "CRM rebuild", projects[0].Title)
	assert.Equal(t, []string{"go", "vue"}, projects[0].TechStack)
	assert.Equal(t, 14, projects[0].TimelineDays)

	_, err = LoadProjectsFile(dir + "/missing.yaml")
	assert.Error(t, err)
}

func TestClampSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, clampSimilarity(1.4))
	assert.Equal(t, 0.0, clampSimilarity(-0.2))
	assert.Equal(t, 0.5, clampSimilarity(0.5))
}
