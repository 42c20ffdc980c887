package scope

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/config"
	"github.com/scopewell/scope-copilot/internal/extract"
	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/retrieval"
	"github.com/scopewell/scope-copilot/internal/schema"
	"github.com/scopewell/scope-copilot/internal/store"
)

// Engine owns all live scoping sessions and drives each one through the
// collecting -> confirming -> scoped lifecycle. Sessions for distinct
// thread ids proceed fully in parallel; turns within one thread serialize
// on the session lock.
type Engine struct {
	cfg       config.EngineConfig
	schemas   *schema.Registry
	extractor extract.Extractor
	retriever *retrieval.Adapter
	store     store.Store

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the live per-thread state. All fields are guarded by mu.
type session struct {
	mu       sync.Mutex
	threadID string
	schema   *model.Schema
	conf     *ConfidenceStore
	turn     int
	state    model.SessionState
	history  []model.Message
}

// Reply is what one handle-message turn returns to the caller.
type Reply struct {
	Text      string             `json:"text"`
	State     model.SessionState `json:"state"`
	TurnID    int                `json:"turn_id"`
	FinalSpec map[string]any     `json:"final_spec,omitempty"`
}

// NewEngine wires the engine. retriever may wrap a nil backend, in which
// case retrieval is simply skipped.
func NewEngine(cfg config.EngineConfig, schemas *schema.Registry, extractor extract.Extractor, retriever *retrieval.Adapter, st store.Store) *Engine {
	return &Engine{
		cfg:       cfg,
		schemas:   schemas,
		extractor: extractor,
		retriever: retriever,
		store:     st,
		sessions:  make(map[string]*session),
	}
}

// HandleMessage processes one inbound utterance for a thread, creating the
// session on first contact. An empty platform selects the configured
// default; the platform choice only matters on the creating call.
//
// Exactly one trace record is appended per call, durably, before the reply
// is returned.
func (e *Engine) HandleMessage(ctx context.Context, threadID, platform, message string) (*Reply, error) {
	sess, err := e.session(threadID, platform)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.turn++
	fromState := sess.state
	sess.history = append(sess.history, model.Message{Role: "user", Content: message})

	tr := model.TraceRecord{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		TurnID:    sess.turn,
		FromState: fromState,
		CreatedAt: time.Now().UTC(),
	}

	reply := e.step(ctx, sess, message, &tr)

	tr.ToState = sess.state
	sess.history = append(sess.history, model.Message{Role: "assistant", Content: reply.Text})

	// Durable trace write before the caller sees the reply.
	if err := e.store.AppendTrace(ctx, tr); err != nil {
		return nil, eris.Wrapf(err, "engine: trace append for %s turn %d", threadID, sess.turn)
	}

	if sess.state.Terminal() {
		if err := e.retire(ctx, sess); err != nil {
			return nil, err
		}
	}

	zap.L().Info("turn handled",
		zap.String("thread_id", threadID),
		zap.Int("turn", sess.turn),
		zap.String("from", string(fromState)),
		zap.String("to", string(sess.state)),
		zap.Int("deltas", len(tr.Deltas)),
	)
	return reply, nil
}

// step runs the state machine for one turn. It mutates the session and
// fills the trace record's decision fields, returning the reply.
func (e *Engine) step(ctx context.Context, sess *session, message string, tr *model.TraceRecord) *Reply {
	reply := &Reply{TurnID: sess.turn}

	// Turn cap applies regardless of the current state.
	if sess.turn > e.cfg.MaxIterations {
		sess.state = model.StateAbandoned
		tr.Rationale = fmt.Sprintf("turn limit %d exceeded, abandoning", e.cfg.MaxIterations)
		reply.Text = "We've gone back and forth quite a while without settling the scope. I'm closing this session; feel free to start a new one."
		reply.State = sess.state
		return reply
	}

	// Final sign-off.
	if sess.state == model.StateConfirming && IsAffirmation(message) {
		for i := range sess.schema.Fields {
			name := sess.schema.Fields[i].Name
			if _, ok := sess.conf.Get(name); !ok {
				continue
			}
			if err := sess.conf.Confirm(name, sess.turn); err != nil {
				// Present fields always confirm; nothing to recover here.
				zap.L().Warn("confirm during sign-off failed", zap.String("field", name), zap.Error(err))
			}
		}
		sess.state = model.StateScoped
		tr.Rationale = "user affirmed the summary, session scoped"
		reply.Text = "Great, the scope is locked in. Thanks!"
		reply.State = sess.state
		reply.FinalSpec = finalSpec(sess.conf)
		return reply
	}

	candidates := e.extract(ctx, sess, message, tr)

	// A non-affirmative message during confirmation is a correction:
	// candidates for settled fields apply as overrides, the rest merge
	// normally below. The session returns to collecting for at least one
	// turn so the user sees the correction land before being asked to
	// confirm again.
	corrected := sess.state == model.StateConfirming
	if corrected {
		candidates = e.applyCorrections(ctx, sess, candidates, tr)
		sess.state = model.StateCollecting
	}

	outcome := Merge(sess.conf, sess.schema, candidates, sess.turn)
	tr.Deltas = append(tr.Deltas, outcome.Deltas...)
	tr.Dropped = append(tr.Dropped, outcome.Dropped...)

	missing := sess.conf.MissingRequired(sess.schema, e.cfg.CompletionThreshold)
	if len(missing) == 0 {
		if corrected {
			tr.Rationale = "correction applied, re-collecting"
			reply.Text = correctionAck(tr.Deltas)
			reply.State = sess.state
			return reply
		}
		sess.state = model.StateConfirming
		tr.Rationale = "all required fields above threshold, awaiting confirmation"
		reply.Text = confirmationSummary(sess.schema, sess.conf)
		reply.State = sess.state
		return reply
	}

	var hits []model.RetrievalHit
	if avg := sess.conf.AverageRequiredConfidence(sess.schema); avg >= e.cfg.RetrievalMinConfidence {
		var degraded bool
		hits, degraded = e.retriever.FindSimilar(ctx, buildProbe(sess.schema, sess.conf), e.cfg.RetrievalK)
		if degraded {
			tr.Degraded = append(tr.Degraded, "retrieval")
		}
		tr.Hits = hits
	}

	sess.state = model.StateCollecting
	tr.Rationale = fmt.Sprintf("still missing %s, asking for %s", strings.Join(missing, ", "), missing[0])
	reply.Text = nextQuestion(sess.schema.Field(missing[0]), hits)
	reply.State = sess.state
	return reply
}

// extract calls the extraction backend under its timeout. Any failure
// degrades to no candidates; the turn proceeds with the store unchanged.
func (e *Engine) extract(ctx context.Context, sess *session, message string, tr *model.TraceRecord) []model.Candidate {
	if e.extractor == nil {
		return nil
	}
	if secs := e.cfg.ExtractionTimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	res, err := e.extractor.Extract(ctx, extract.Request{
		Schema:    sess.schema,
		Utterance: message,
		Snapshot:  sess.conf.Snapshot(),
		History:   sess.history,
	})
	if err != nil {
		zap.L().Warn("extraction degraded, proceeding without candidates",
			zap.String("thread_id", sess.threadID),
			zap.Bool("timeout", eris.Is(err, model.ErrBackendTimeout)),
			zap.Error(err),
		)
		tr.Degraded = append(tr.Degraded, "extraction")
		return nil
	}
	return res.Candidates
}

// applyCorrections handles candidates extracted from a correction message:
// those that target fields already above the completion threshold become
// override feedback, pinning the field at corrected/1.0. Candidates for
// still-missing fields are returned for the normal merge.
func (e *Engine) applyCorrections(ctx context.Context, sess *session, candidates []model.Candidate, tr *model.TraceRecord) []model.Candidate {
	var remaining []model.Candidate
	for _, cand := range candidates {
		cur, ok := sess.conf.Get(cand.Field)
		if !ok || cur.Confidence < e.cfg.CompletionThreshold {
			remaining = append(remaining, cand)
			continue
		}

		entry, rec, err := ApplyFeedback(sess.conf, sess.schema, sess.threadID, cand.Field, model.FeedbackOverride, cand.Value, sess.turn)
		if err != nil {
			tr.Dropped = append(tr.Dropped, fmt.Sprintf("%s: correction rejected: %v", cand.Field, err))
			continue
		}
		if err := e.store.AppendFeedback(ctx, rec); err != nil {
			zap.L().Error("feedback record append failed", zap.String("field", cand.Field), zap.Error(err))
		}
		tr.Deltas = append(tr.Deltas, model.FieldDelta{
			Field:         cand.Field,
			OldValue:      cur.Value,
			NewValue:      entry.Value,
			OldConfidence: cur.Confidence,
			NewConfidence: entry.Confidence,
			Provenance:    entry.Provenance,
		})
	}
	return remaining
}

// ApplyFeedback applies one explicit correction addressed to an existing
// session, outside the handle-message path. Fails with ErrSessionNotFound
// for an unknown thread. A non-accept action while the session awaits
// confirmation sends it back to collecting.
func (e *Engine) ApplyFeedback(ctx context.Context, threadID, field string, action model.FeedbackAction, newValue any) (model.Entry, error) {
	e.mu.Lock()
	sess, ok := e.sessions[threadID]
	e.mu.Unlock()
	if !ok {
		return model.Entry{}, eris.Wrapf(model.ErrSessionNotFound, "engine: no live session %s", threadID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	entry, rec, err := ApplyFeedback(sess.conf, sess.schema, threadID, field, action, newValue, sess.turn)
	if err != nil {
		return model.Entry{}, err
	}
	if err := e.store.AppendFeedback(ctx, rec); err != nil {
		return model.Entry{}, eris.Wrapf(err, "engine: feedback append for %s", threadID)
	}
	if sess.state == model.StateConfirming && action != model.FeedbackAccept {
		sess.state = model.StateCollecting
	}
	return entry, nil
}

// Snapshot returns the current view of a session: the live one if present,
// otherwise the archived record.
func (e *Engine) Snapshot(ctx context.Context, threadID string) (*model.SessionSnapshot, error) {
	e.mu.Lock()
	sess, ok := e.sessions[threadID]
	e.mu.Unlock()

	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return &model.SessionSnapshot{
			ThreadID:  threadID,
			Platform:  sess.schema.Platform,
			State:     sess.state,
			TurnCount: sess.turn,
			Fields:    sess.conf.Snapshot(),
			Missing:   sess.conf.MissingRequired(sess.schema, e.cfg.CompletionThreshold),
			History:   append([]model.Message(nil), sess.history...),
		}, nil
	}

	archived, err := e.store.GetArchivedSession(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if archived == nil {
		return nil, eris.Wrapf(model.ErrSessionNotFound, "engine: unknown thread %s", threadID)
	}
	return &model.SessionSnapshot{
		ThreadID:  archived.ThreadID,
		Platform:  archived.Platform,
		State:     archived.State,
		TurnCount: archived.TurnCount,
		Fields:    archived.Fields,
		History:   archived.History,
	}, nil
}

// Traces returns the full reasoning trace of a thread, turn order.
func (e *Engine) Traces(ctx context.Context, threadID string) ([]model.TraceRecord, error) {
	return e.store.ListTraces(ctx, threadID)
}

// session finds or creates the live session for a thread.
func (e *Engine) session(threadID, platform string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sess, ok := e.sessions[threadID]; ok {
		return sess, nil
	}

	if platform == "" {
		platform = e.cfg.DefaultPlatform
	}
	sch, err := e.schemas.Get(platform)
	if err != nil {
		return nil, err
	}

	sess := &session{
		threadID: threadID,
		schema:   sch,
		conf:     NewConfidenceStore(),
		state:    model.StateCollecting,
	}
	e.sessions[threadID] = sess
	zap.L().Info("session created",
		zap.String("thread_id", threadID),
		zap.String("platform", platform),
	)
	return sess, nil
}

// retire archives a terminal session and drops it from the live map.
// Caller holds the session lock.
func (e *Engine) retire(ctx context.Context, sess *session) error {
	archived := model.ArchivedSession{
		ThreadID:   sess.threadID,
		Platform:   sess.schema.Platform,
		State:      sess.state,
		TurnCount:  sess.turn,
		Fields:     sess.conf.Snapshot(),
		History:    append([]model.Message(nil), sess.history...),
		ArchivedAt: time.Now().UTC(),
	}
	if err := e.store.ArchiveSession(ctx, archived); err != nil {
		return eris.Wrapf(err, "engine: archive %s", sess.threadID)
	}

	e.mu.Lock()
	delete(e.sessions, sess.threadID)
	e.mu.Unlock()

	zap.L().Info("session retired",
		zap.String("thread_id", sess.threadID),
		zap.String("state", string(sess.state)),
		zap.Int("turns", sess.turn),
	)
	return nil
}

// finalSpec flattens the store to plain field->value for a scoped reply.
func finalSpec(conf *ConfidenceStore) map[string]any {
	snap := conf.Snapshot()
	out := make(map[string]any, len(snap))
	for name, e := range snap {
		out[name] = e.Value
	}
	return out
}

// buildProbe concatenates the present field values, schema order, into the
// text probe handed to retrieval.
func buildProbe(sch *model.Schema, conf *ConfidenceStore) string {
	var parts []string
	for i := range sch.Fields {
		e, ok := conf.Get(sch.Fields[i].Name)
		if !ok {
			continue
		}
		parts = append(parts, renderValue(e.Value))
	}
	return strings.Join(parts, " ")
}
