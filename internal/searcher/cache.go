package searcher

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/curriculum-search/pkg/types"
)

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// checkCache returns a copy of a live cached response, or nil.
func (s *Searcher) checkCache(key [32]byte) *SearchResponse {
	if s.cache == nil {
		return nil
	}
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil
	}

	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of response under key
func (s *Searcher) storeInCache(key [32]byte, response *SearchResponse) {
	if s.cache == nil {
		return
	}

	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(s.cacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(key, entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Call after ingestion.
func (s *Searcher) InvalidateCache() {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}

	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, r := range src.Results {
		dst.Results[i] = r
		// the only pointer fields are the LLM scores
		if r.Scores.LLMRaw != nil {
			v := *r.Scores.LLMRaw
			dst.Results[i].Scores.LLMRaw = &v
		}
		if r.Scores.LLMScore != nil {
			v := *r.Scores.LLMScore
			dst.Results[i].Scores.LLMScore = &v
		}
	}

	return &dst
}

// computeRequestHash keys a normalized request. Defaults must already be applied.
func computeRequestHash(req SearchRequest) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	fmt.Fprintf(&data, "|%d|%.6f|%t", req.Limit, req.Threshold, req.Rerank)
	if req.Weight != nil {
		fmt.Fprintf(&data, "|w:%.6f", *req.Weight)
	}
	if req.LexicalWeight != nil {
		fmt.Fprintf(&data, "|lw:%.6f", *req.LexicalWeight)
	}
	return sha256.Sum256([]byte(data.String()))
}
