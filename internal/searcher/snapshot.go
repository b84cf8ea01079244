package searcher

import (
	"context"
	"fmt"

	"github.com/dshills/curriculum-search/internal/similarity"
	"github.com/dshills/curriculum-search/internal/storage"
	"github.com/dshills/curriculum-search/pkg/types"
)

// Snapshot is a point-in-time, read-only view of the corpus used by one search
type Snapshot struct {
	goals        []*types.Goal
	elaborations []*types.Elaboration

	goalByID  map[int64]*types.Goal
	elabByExt map[string]*types.Elaboration
	elabByID  map[int64]*types.Elaboration

	// owners maps an elaboration external id to the goals linking it
	owners map[string][]int64

	vectors *similarity.Store
}

// NewSnapshot indexes goals and elaborations. Vectors are added with AddVector.
func NewSnapshot(goals []*types.Goal, elaborations []*types.Elaboration) *Snapshot {
	s := &Snapshot{
		goals:        goals,
		elaborations: elaborations,
		goalByID:     make(map[int64]*types.Goal, len(goals)),
		elabByExt:    make(map[string]*types.Elaboration, len(elaborations)),
		elabByID:     make(map[int64]*types.Elaboration, len(elaborations)),
		owners:       make(map[string][]int64),
		vectors:      similarity.NewStore(),
	}

	for _, e := range elaborations {
		s.elabByExt[e.ExternalID] = e
		s.elabByID[e.ID] = e
	}

	for _, g := range goals {
		s.goalByID[g.ID] = g
		seen := make(map[string]struct{}, len(g.ElaborationIDs))
		for _, ext := range g.ElaborationIDs {
			if _, dup := seen[ext]; dup {
				continue
			}
			seen[ext] = struct{}{}
			s.owners[ext] = append(s.owners[ext], g.ID)
		}
	}

	return s
}

// AddVector attaches a vector to a known entity. Vectors for entities that
// are not in the snapshot are ignored.
func (s *Snapshot) AddVector(kind types.EntityKind, id int64, vector []float32) error {
	switch kind {
	case types.KindGoal:
		if _, ok := s.goalByID[id]; !ok {
			return nil
		}
	case types.KindElaboration:
		if _, ok := s.elabByID[id]; !ok {
			return nil
		}
	}
	return s.vectors.Add(kind, id, vector)
}

// LoadSnapshot reads the corpus and the vectors of one embedding model.
func LoadSnapshot(ctx context.Context, reader storage.Reader, model string) (*Snapshot, error) {
	goals, err := reader.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	elaborations, err := reader.ListElaborations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list elaborations: %w", err)
	}

	snap := NewSnapshot(goals, elaborations)

	for _, kind := range []types.EntityKind{types.KindGoal, types.KindElaboration} {
		records, err := reader.LoadEmbeddings(ctx, kind, model)
		if err != nil {
			return nil, fmt.Errorf("load %s embeddings: %w", kind, err)
		}
		for _, rec := range records {
			if err := snap.AddVector(kind, rec.EntityID, rec.Vector); err != nil {
				return nil, fmt.Errorf("%s %d: %w", kind, rec.EntityID, err)
			}
		}
	}

	return snap, nil
}

// Owners returns the ids of goals linking the elaboration.
func (s *Snapshot) Owners(elaborationExternalID string) []int64 {
	return s.owners[elaborationExternalID]
}

// Linked returns the goal's elaborations present in the snapshot, in link order.
func (s *Snapshot) Linked(g *types.Goal) []*types.Elaboration {
	out := make([]*types.Elaboration, 0, len(g.ElaborationIDs))
	for _, ext := range g.ElaborationIDs {
		if e, ok := s.elabByExt[ext]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Goal returns a goal by id.
func (s *Snapshot) Goal(id int64) (*types.Goal, bool) {
	g, ok := s.goalByID[id]
	return g, ok
}

// Elaboration returns an elaboration by id.
func (s *Snapshot) Elaboration(id int64) (*types.Elaboration, bool) {
	e, ok := s.elabByID[id]
	return e, ok
}

// Vectors exposes the snapshot's similarity store.
func (s *Snapshot) Vectors() *similarity.Store {
	return s.vectors
}
