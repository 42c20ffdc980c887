package retrieval

import (
	"context"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/unicode/norm"

	"github.com/scopewell/scope-copilot/internal/resilience"
)

// OpenAIEmbedder implements Embedder against any OpenAI-compatible
// embeddings endpoint. The model identifier is passed through opaquely.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder builds an embedder. baseURL may be empty for the
// default endpoint, or point at a local OpenAI-compatible server.
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Embed returns the dense vector for text. Probes are NFC-normalized so
// visually identical probes embed identically.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := resilience.Do(ctx, resilience.Backend(), "openai.create_embeddings",
		func(ctx context.Context) (openai.EmbeddingResponse, error) {
			return e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Model: openai.EmbeddingModel(e.model),
				Input: []string{norm.NFC.String(text)},
			})
		})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: create embedding")
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("retrieval: embeddings response empty")
	}
	return resp.Data[0].Embedding, nil
}
