package types

// RerankState records what happened to a candidate in the LLM rerank stage
type RerankState string

const (
	RerankSkipped  RerankState = ""         // not submitted (rerank off or beyond batch cap)
	RerankPending  RerankState = "pending"  // submitted, no outcome yet
	RerankScored   RerankState = "scored"   // LLM returned a usable score
	RerankFallback RerankState = "fallback" // timeout, transport error or unparseable reply
)

// ScoreBreakdown explains how a result's similarity was built
type ScoreBreakdown struct {
	GoalSimilarity        float64 `json:"goal_similarity"`
	ElaborationSimilarity float64 `json:"elaboration_similarity"`
	Combined              float64 `json:"combined"`

	// Rerank stage; LLMRaw is the model's 0-10 answer
	RerankState RerankState `json:"rerank_state,omitempty"`
	LLMRaw      *float64    `json:"llm_raw,omitempty"`
	LLMScore    *float64    `json:"llm_score,omitempty"`

	// Lexical stage
	LexicalRaw        float64 `json:"bm25"`
	LexicalNormalized float64 `json:"bm25_normalized"`
}

// SearchResult is one ranked match
type SearchResult struct {
	// Identification
	ID         int64      `json:"id"`
	ExternalID string     `json:"external_id"`
	EntityKind EntityKind `json:"entity_kind"`
	Rank       int        `json:"rank"`          // Position in result set (1-based)
	PreRank    int        `json:"original_rank"` // Position after the semantic stage (1-based)

	// Content
	Title       string `json:"title"`
	Description string `json:"description"`
	Prefix      string `json:"prefix,omitempty"`
	Kind        string `json:"kind,omitempty"`

	// Similarity is the single score consumers read; it may exceed 1.0
	Similarity float64        `json:"similarity"`
	Scores     ScoreBreakdown `json:"scores"`
}
