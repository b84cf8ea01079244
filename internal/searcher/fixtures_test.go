package searcher

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"

	"github.com/dshills/curriculum-search/internal/embedder"
	"github.com/dshills/curriculum-search/internal/storage"
	"github.com/dshills/curriculum-search/pkg/types"
)

const testModel = "test-model"

// at returns a unit vector whose cosine with (1, 0) is c
func at(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

// fakeEmbedder embeds every text as (1, 0) unless told otherwise
type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int32
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	v := f.vector
	if v == nil {
		v = []float32{1, 0}
	}
	return &embedder.Embedding{Vector: v, Dimension: len(v), Model: testModel, Hash: embedder.ComputeHash(req.Text)}, nil
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := f.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Model: testModel}, nil
}

func (f *fakeEmbedder) Dimension() int   { return 2 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return testModel }
func (f *fakeEmbedder) Close() error     { return nil }

// memReader is an in-memory storage.Reader
type memReader struct {
	goals        []*types.Goal
	elaborations []*types.Elaboration
	embeddings   map[types.EntityKind][]*storage.EmbeddingRecord
	listErr      error
}

func newMemReader() *memReader {
	return &memReader{embeddings: make(map[types.EntityKind][]*storage.EmbeddingRecord)}
}

// goal adds a goal with an optional vector and returns its id
func (m *memReader) goal(ext, title, desc string, vec []float32, elabs ...string) int64 {
	id := int64(len(m.goals) + 1)
	m.goals = append(m.goals, &types.Goal{
		ID: id, ExternalID: ext, Title: title, Description: desc, Kind: "kern", ElaborationIDs: elabs,
	})
	if vec != nil {
		m.embed(types.KindGoal, id, vec)
	}
	return id
}

func (m *memReader) elaboration(ext, title, desc string, vec []float32) int64 {
	id := int64(len(m.elaborations) + 1)
	m.elaborations = append(m.elaborations, &types.Elaboration{
		ID: id, ExternalID: ext, Title: title, Description: desc,
	})
	if vec != nil {
		m.embed(types.KindElaboration, id, vec)
	}
	return id
}

func (m *memReader) embed(kind types.EntityKind, id int64, vec []float32) {
	m.embeddings[kind] = append(m.embeddings[kind], &storage.EmbeddingRecord{
		ID: int64(len(m.embeddings[kind]) + 1), EntityKind: kind, EntityID: id,
		Model: testModel, Dimension: len(vec), Vector: vec,
	})
}

func (m *memReader) GetGoal(_ context.Context, id int64) (*types.Goal, error) {
	for _, g := range m.goals {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memReader) GetGoalByExternalID(_ context.Context, ext string) (*types.Goal, error) {
	for _, g := range m.goals {
		if g.ExternalID == ext {
			return g, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memReader) ListGoals(context.Context) ([]*types.Goal, error) {
	return m.goals, m.listErr
}

func (m *memReader) ListElaborations(context.Context) ([]*types.Elaboration, error) {
	return m.elaborations, m.listErr
}

func (m *memReader) GetElaborationsByExternalIDs(_ context.Context, ids []string) ([]*types.Elaboration, error) {
	var out []*types.Elaboration
	for _, ext := range ids {
		for _, e := range m.elaborations {
			if e.ExternalID == ext {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (m *memReader) LoadEmbeddings(_ context.Context, kind types.EntityKind, model string) ([]*storage.EmbeddingRecord, error) {
	var out []*storage.EmbeddingRecord
	for _, rec := range m.embeddings[kind] {
		if model == "" || rec.Model == model {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memReader) GetStats(context.Context) (*storage.Stats, error) {
	return &storage.Stats{
		Goals:                 len(m.goals),
		Elaborations:          len(m.elaborations),
		GoalEmbeddings:        len(m.embeddings[types.KindGoal]),
		ElaborationEmbeddings: len(m.embeddings[types.KindElaboration]),
	}, nil
}

// titleCompleter answers each grading prompt by the goal title it names
type titleCompleter struct {
	replies map[string]string
	err     error
	calls   int32
}

func (c *titleCompleter) Complete(_ context.Context, prompt string, _ func(string) bool) (string, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return "", c.err
	}
	for _, line := range strings.Split(prompt, "\n") {
		if title, ok := strings.CutPrefix(line, "Titel: "); ok {
			if reply, ok := c.replies[title]; ok {
				return reply, nil
			}
		}
	}
	return "", errors.New("no reply scripted")
}

func ptr(v float64) *float64 { return &v }
