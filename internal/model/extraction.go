package model

// Candidate is one field value proposed by the extraction backend, with the
// extractor's raw confidence before ceilings apply.
type Candidate struct {
	Field      string  `json:"field"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// ExtractionResult is the structured output of one extraction call.
type ExtractionResult struct {
	Candidates []Candidate `json:"candidates"`
	Usage      TokenUsage  `json:"usage"`
}

// TokenUsage tracks token consumption of a backend call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add merges token usage from another call.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
}
