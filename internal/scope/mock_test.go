package scope

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/scopewell/scope-copilot/internal/extract"
	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/store"
)

// --- Extractor mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, req extract.Request) (*model.ExtractionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ExtractionResult), args.Error(1)
}

// --- Retriever mock ---

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) FindSimilar(ctx context.Context, probe string, k int) ([]model.RetrievalHit, error) {
	args := m.Called(ctx, probe, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RetrievalHit), args.Error(1)
}

// --- In-memory store ---

// memStore implements store.Store for engine tests.
type memStore struct {
	mu       sync.Mutex
	traces   []model.TraceRecord
	feedback []model.FeedbackRecord
	archived map[string]model.ArchivedSession

	failTrace error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{archived: make(map[string]model.ArchivedSession)}
}

func (s *memStore) AppendTrace(ctx context.Context, rec model.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failTrace != nil {
		return s.failTrace
	}
	s.traces = append(s.traces, rec)
	return nil
}

func (s *memStore) ListTraces(ctx context.Context, threadID string) ([]model.TraceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TraceRecord
	for _, tr := range s.traces {
		if tr.ThreadID == threadID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *memStore) AppendFeedback(ctx context.Context, rec model.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, rec)
	return nil
}

func (s *memStore) ListFeedback(ctx context.Context, threadID string) ([]model.FeedbackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.FeedbackRecord
	for _, rec := range s.feedback {
		if rec.ThreadID == threadID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) ArchiveSession(ctx context.Context, sess model.ArchivedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived[sess.ThreadID] = sess
	return nil
}

func (s *memStore) GetArchivedSession(ctx context.Context, threadID string) (*model.ArchivedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.archived[threadID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *memStore) ListArchivedSessions(ctx context.Context, filter store.ArchiveFilter) ([]model.ArchivedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ArchivedSession
	for _, sess := range s.archived {
		if filter.State != "" && sess.State != filter.State {
			continue
		}
		if filter.Platform != "" && sess.Platform != filter.Platform {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *memStore) Migrate(ctx context.Context) error { return nil }
func (s *memStore) Close() error                      { return nil }

func (s *memStore) traceCount(threadID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tr := range s.traces {
		if tr.ThreadID == threadID {
			n++
		}
	}
	return n
}
