package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/curriculum-search/internal/embedder"
	"github.com/dshills/curriculum-search/internal/reranker"
	"github.com/dshills/curriculum-search/internal/storage"
	"github.com/dshills/curriculum-search/pkg/types"
)

const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultCacheTTL  = time.Hour
	defaultCacheSize = 1000
)

// Validation errors
var (
	ErrEmptyQuery           = errors.New("query cannot be empty")
	ErrInvalidThreshold     = errors.New("threshold must be between 0 and 1")
	ErrInvalidWeight        = errors.New("weight must be between 0 and 1")
	ErrInvalidLexicalWeight = errors.New("lexical weight cannot be negative")
	ErrNotInitialized       = errors.New("searcher dependencies not initialized")
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query     string
	Limit     int      // 0 means DefaultLimit; capped at MaxLimit
	Threshold float64  // applied once, after every scoring stage
	Weight    *float64 // goal share of the combined score; nil means the searcher default
	Rerank    bool

	// LexicalWeight overrides the searcher's BM25 fusion weight
	LexicalWeight *float64
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Query     string               `json:"query"`
	Count     int                  `json:"count"`
	Results   []types.SearchResult `json:"results"`
	Reranked  bool                 `json:"reranked"`
	Duration  time.Duration        `json:"duration_ns"`
	CacheHit  bool                 `json:"cache_hit"`
	RequestID string               `json:"request_id"`
}

// Searcher runs the hybrid search pipeline over a storage snapshot
type Searcher struct {
	reader   storage.Reader
	embedder embedder.Embedder
	reranker *reranker.Reranker
	logger   *slog.Logger

	model         string
	weight        float64
	lexicalWeight float64
	floor         float64

	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
	cacheTTL time.Duration
}

// Option configures a Searcher
type Option func(*Searcher) error

// WithReranker enables LLM reranking for requests that ask for it.
func WithReranker(r *reranker.Reranker) Option {
	return func(s *Searcher) error {
		s.reranker = r
		return nil
	}
}

// WithLexicalWeight sets the default BM25 fusion weight.
func WithLexicalWeight(w float64) Option {
	return func(s *Searcher) error {
		if w < 0 {
			return ErrInvalidLexicalWeight
		}
		s.lexicalWeight = w
		return nil
	}
}

// WithDefaultWeight sets the goal weight used when a request leaves it unset.
func WithDefaultWeight(w float64) Option {
	return func(s *Searcher) error {
		if w < 0 || w > 1 {
			return ErrInvalidWeight
		}
		s.weight = w
		return nil
	}
}

// WithCombineFloor sets the minimum combined score a candidate needs to stay in the pipeline.
func WithCombineFloor(floor float64) Option {
	return func(s *Searcher) error {
		s.floor = floor
		return nil
	}
}

// WithCache enables the response cache. A size of 0 disables it.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Searcher) error {
		if size <= 0 {
			s.cache = nil
			return nil
		}
		cache, err := lru.New[[32]byte, *cacheEntry](size)
		if err != nil {
			return fmt.Errorf("create response cache: %w", err)
		}
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		s.cache = cache
		s.cacheTTL = ttl
		return nil
	}
}

// WithModel selects which stored embeddings are searched. Defaults to the
// embedder's model.
func WithModel(model string) Option {
	return func(s *Searcher) error {
		s.model = model
		return nil
	}
}

// WithLogger sets the logger. nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(reader storage.Reader, emb embedder.Embedder, opts ...Option) (*Searcher, error) {
	if reader == nil || emb == nil {
		return nil, ErrNotInitialized
	}

	s := &Searcher{
		reader:        reader,
		embedder:      emb,
		logger:        slog.Default().With("component", "searcher"),
		model:         emb.Model(),
		weight:        DefaultWeight,
		lexicalWeight: DefaultLexicalWeight,
		floor:         CombineFloor,
		cacheTTL:      DefaultCacheTTL,
	}

	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	s.cache = cache

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search embeds the query once and runs combine, optional rerank and lexical
// fusion in that order. The threshold and limit are applied to the final scores.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.normalizeRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	key := computeRequestHash(req)
	if cached := s.checkCache(key); cached != nil {
		cached.CacheHit = true
		cached.RequestID = requestID
		cached.Duration = time.Since(startTime)
		logger.Debug("search served from cache", "query", req.Query)
		return cached, nil
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingProvider, err)
	}

	snap, err := LoadSnapshot(ctx, s.reader, s.model)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	candidates, err := combine(snap, emb.Vector, *req.Weight, s.floor)
	if err != nil {
		return nil, err
	}
	combined := len(candidates)

	reranked, fallbacks := false, 0
	if req.Rerank {
		if s.reranker == nil {
			logger.Warn("rerank requested but no reranker configured")
		} else {
			candidates = s.rerank(ctx, req.Query, candidates)
			reranked = true
			for _, c := range candidates {
				if c.Scores.breakdown.RerankState == types.RerankFallback {
					fallbacks++
				}
			}
		}
	}

	enhance(req.Query, candidates, *req.LexicalWeight)

	results := make([]types.SearchResult, 0, req.Limit)
	for _, c := range candidates {
		if c.Similarity() < req.Threshold {
			continue
		}
		results = append(results, c.result(len(results)+1))
		if len(results) == req.Limit {
			break
		}
	}

	response := &SearchResponse{
		Query:     req.Query,
		Count:     len(results),
		Results:   results,
		Reranked:  reranked,
		Duration:  time.Since(startTime),
		RequestID: requestID,
	}

	logger.Info("search complete",
		"query", req.Query,
		"candidates", combined,
		"results", response.Count,
		"reranked", reranked,
		"rerank_fallbacks", fallbacks,
		"duration", response.Duration)

	// a fallback usually means the LLM was briefly unreachable; grade again next time
	if fallbacks == 0 {
		s.storeInCache(key, response)
	}

	return response, nil
}

// rerank grades the leading candidates with the LLM and returns them in their
// new order. Candidates the LLM could not grade keep their score.
func (s *Searcher) rerank(ctx context.Context, query string, candidates []*Candidate) []*Candidate {
	items := make([]reranker.Item, len(candidates))
	for i, c := range candidates {
		elabs := make([]reranker.Elaboration, 0, len(c.Elaborations))
		for _, e := range c.Elaborations {
			elabs = append(elabs, reranker.Elaboration{Title: e.Title, Description: e.Description})
		}
		items[i] = reranker.Item{
			Title:        c.Goal.Title,
			Description:  c.Goal.Description,
			Kind:         c.Goal.Kind,
			Elaborations: elabs,
			Similarity:   c.Similarity(),
		}
	}

	outcomes := s.reranker.Rerank(ctx, query, items)

	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		out := outcomes[i]
		c.Scores.breakdown.RerankState = out.State
		if out.State == types.RerankScored {
			raw, score := out.Raw, out.Score
			c.Scores.breakdown.LLMRaw = &raw
			c.Scores.breakdown.LLMScore = &score
			c.Scores.Append(StageRerank, score)
		}
		scores[i] = c.Similarity()
	}

	graded := min(len(candidates), s.reranker.BatchSize())
	order := reranker.Order(scores, graded, s.reranker.MergeOrder())

	out := make([]*Candidate, len(candidates))
	for i, idx := range order {
		out[i] = candidates[idx]
	}
	return out
}

// normalizeRequest validates req and fills in defaults
func (s *Searcher) normalizeRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}

	if req.Threshold < 0 || req.Threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, req.Threshold)
	}

	if req.Weight == nil {
		w := s.weight
		req.Weight = &w
	} else if *req.Weight < 0 || *req.Weight > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidWeight, *req.Weight)
	}

	if req.LexicalWeight == nil {
		lw := s.lexicalWeight
		req.LexicalWeight = &lw
	} else if *req.LexicalWeight < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidLexicalWeight, *req.LexicalWeight)
	}

	return nil
}
