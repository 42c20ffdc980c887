package retrieval

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/model"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// PastProject is one indexed project record.
type PastProject struct {
	ID           uuid.UUID
	Title        string    `yaml:"title"`
	Summary      string    `yaml:"summary"`
	Platform     string    `yaml:"platform"`
	TechStack    []string  `yaml:"tech_stack"`
	TimelineDays int       `yaml:"timeline_days"`
	IndexedAt    time.Time `yaml:"-"`
}

// QdrantIndex implements Retriever backed by Qdrant, embedding probes
// through the configured Embedder.
type QdrantIndex struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
	dims       uint64
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, eris.Errorf("retrieval: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, eris.Errorf("retrieval: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// NewQdrantIndex connects to the Qdrant server via gRPC.
func NewQdrantIndex(cfg QdrantConfig, embedder Embedder) (*QdrantIndex, error) {
	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "retrieval: connect to qdrant at %s:%d", host, port)
	}

	return &QdrantIndex{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		dims:       cfg.Dims,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist.
func (q *QdrantIndex) EnsureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return eris.Wrap(err, "retrieval: check collection exists")
	}
	if exists {
		return nil
	}

	if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return eris.Wrapf(err, "retrieval: create collection %q", q.collection)
	}
	zap.L().Info("retrieval: created qdrant collection",
		zap.String("collection", q.collection),
		zap.Uint64("dims", q.dims),
	)
	return nil
}

// FindSimilar embeds the probe and queries the index, returning at most k
// hits best first with similarity in [0,1].
func (q *QdrantIndex) FindSimilar(ctx context.Context, probe string, k int) ([]model.RetrievalHit, error) {
	if k <= 0 {
		return nil, nil
	}

	embedding, err := q.embedder.Embed(ctx, probe)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: embed probe")
	}

	limit := uint64(k)
	scored, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: qdrant query")
	}

	hits := make([]model.RetrievalHit, 0, len(scored))
	for _, sp := range scored {
		hit := model.RetrievalHit{Similarity: clampSimilarity(float64(sp.Score))}
		if v, ok := sp.Payload["title"]; ok {
			hit.Title = v.GetStringValue()
		}
		if v, ok := sp.Payload["summary"]; ok {
			hit.Summary = v.GetStringValue()
		}
		if v, ok := sp.Payload["platform"]; ok {
			hit.Platform = v.GetStringValue()
		}
		if v, ok := sp.Payload["timeline_days"]; ok {
			hit.TimelineDays = int(v.GetIntegerValue())
		}
		if v, ok := sp.Payload["tech_stack"]; ok {
			for _, item := range v.GetListValue().GetValues() {
				if s := item.GetStringValue(); s != "" {
					hit.TechStack = append(hit.TechStack, s)
				}
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// Upsert indexes project records, embedding their text representation.
func (q *QdrantIndex) Upsert(ctx context.Context, projects []PastProject) error {
	if len(projects) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(projects))
	for _, p := range projects {
		embedding, err := q.embedder.Embed(ctx, p.EmbeddingText())
		if err != nil {
			return eris.Wrapf(err, "retrieval: embed project %q", p.Title)
		}

		id := p.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		payload := map[string]any{
			"title":         p.Title,
			"summary":       p.Summary,
			"platform":      p.Platform,
			"timeline_days": int64(p.TimelineDays),
		}
		if len(p.TechStack) > 0 {
			stack := make([]any, len(p.TechStack))
			for i, t := range p.TechStack {
				stack[i] = t
			}
			payload["tech_stack"] = stack
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(id.String()),
			Vectors: qdrant.NewVectorsDense(embedding),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return eris.Wrapf(err, "retrieval: qdrant upsert %d points", len(points))
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func clampSimilarity(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
