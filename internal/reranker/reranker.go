package reranker

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/curriculum-search/pkg/types"
)

// Defaults
const (
	DefaultBatchSize   = 10
	DefaultConcurrency = 5
	DefaultTimeout     = 5 * time.Second
)

// ErrCompleterRequired is returned when New gets a nil Completer
var ErrCompleterRequired = errors.New("completer is required")

// Outcome is the grading result for one item
type Outcome struct {
	State types.RerankState
	Raw   float64 // model's 0-10 answer, set when State is RerankScored
	Score float64 // Raw normalized to [0,1], set when State is RerankScored
}

// Reranker grades candidates with a language model
type Reranker struct {
	completer   Completer
	batchSize   int
	concurrency int
	timeout     time.Duration
	mergeOrder  bool
	logger      *slog.Logger
}

// Option configures a Reranker.
type Option func(*Reranker) error

// WithBatchSize sets how many leading candidates are graded. Default is 10.
func WithBatchSize(n int) Option {
	return func(r *Reranker) error {
		if n < 1 {
			n = 1
		}
		r.batchSize = n
		return nil
	}
}

// WithConcurrency caps in-flight model calls. Default is 5.
func WithConcurrency(n int) Option {
	return func(r *Reranker) error {
		if n < 1 {
			n = 1
		}
		r.concurrency = n
		return nil
	}
}

// WithTimeout sets the per-call timeout. Default is 5s.
func WithTimeout(d time.Duration) Option {
	return func(r *Reranker) error {
		if d <= 0 {
			d = DefaultTimeout
		}
		r.timeout = d
		return nil
	}
}

// WithMergeOrder re-sorts graded and ungraded candidates together instead of
// keeping the graded prefix first.
func WithMergeOrder(merge bool) Option {
	return func(r *Reranker) error {
		r.mergeOrder = merge
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// New creates a reranker.
func New(completer Completer, opts ...Option) (*Reranker, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	r := &Reranker{
		completer:   completer,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		timeout:     DefaultTimeout,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	r.logger = r.logger.With("component", "reranker")
	return r, nil
}

// BatchSize returns how many leading items Rerank grades.
func (r *Reranker) BatchSize() int {
	return r.batchSize
}

// MergeOrder reports whether Order should sort the full set.
func (r *Reranker) MergeOrder() bool {
	return r.mergeOrder
}

// Rerank grades the first BatchSize items and returns one Outcome per item,
// aligned with items. Items past the batch are RerankSkipped. Failures are
// recovered per item as RerankFallback.
func (r *Reranker) Rerank(ctx context.Context, query string, items []Item) []Outcome {
	outcomes := make([]Outcome, len(items))

	n := len(items)
	if n > r.batchSize {
		n = r.batchSize
	}
	if n == 0 {
		return outcomes
	}

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := 0; i < n; i++ {
		outcomes[i].State = types.RerankPending
		g.Go(func() error {
			// each goroutine writes only its own slot
			outcomes[i] = r.grade(ctx, query, items[i])
			return nil
		})
	}
	_ = g.Wait()

	scored := 0
	for i := 0; i < n; i++ {
		if outcomes[i].State == types.RerankScored {
			scored++
		}
	}
	r.logger.Debug("rerank complete",
		"graded", n,
		"scored", scored,
		"fallback", n-scored,
		"duration", time.Since(start))

	return outcomes
}

func (r *Reranker) grade(ctx context.Context, query string, item Item) Outcome {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.completer.Complete(callCtx, BuildPrompt(query, item), func(text string) bool {
		return !numberComplete(text)
	})
	if err != nil {
		r.logger.Warn("llm grading failed, keeping similarity", "title", item.Title, "err", err)
		return Outcome{State: types.RerankFallback}
	}

	raw, ok := ParseScore(text)
	if !ok {
		r.logger.Warn("llm reply has no score, keeping similarity", "title", item.Title, "reply", text)
		return Outcome{State: types.RerankFallback}
	}

	return Outcome{
		State: types.RerankScored,
		Raw:   raw,
		Score: Normalize(raw),
	}
}

// Order returns the permutation that puts items in their post-rerank order.
// scores holds each item's current score; graded is the length of the graded
// prefix. The prefix is sorted by descending score with ties kept in prior
// order and followed by the ungraded suffix unchanged. With mergeAll the
// whole set is sorted the same way.
func Order(scores []float64, graded int, mergeAll bool) []int {
	if graded > len(scores) {
		graded = len(scores)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}

	span := order[:graded]
	if mergeAll {
		span = order
	}
	sort.SliceStable(span, func(a, b int) bool {
		return scores[span[a]] > scores[span[b]]
	})

	return order
}
