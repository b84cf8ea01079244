// Package similarity holds in-memory vector sets for each curriculum entity
// kind and ranks them by cosine similarity against a query vector.
package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/dshills/curriculum-search/pkg/types"
)

// Match is one scored entry of a Set.
type Match struct {
	ID         int64
	Similarity float64
}

// Set is an insertion-ordered collection of vectors of a single dimension.
type Set struct {
	dimension int
	ids       []int64
	vectors   [][]float32
	norms     []float64
	index     map[int64]int
}

// NewSet creates an empty set. The dimension is fixed by the first Add.
func NewSet() *Set {
	return &Set{index: make(map[int64]int)}
}

// Add appends a vector. Adding an id that is already present replaces its
// vector but keeps its original position.
func (s *Set) Add(id int64, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for id %d", types.ErrDimensionMismatch, id)
	}
	if s.dimension == 0 {
		s.dimension = len(vector)
	}
	if len(vector) != s.dimension {
		return fmt.Errorf("%w: id %d has %d, set has %d", types.ErrDimensionMismatch, id, len(vector), s.dimension)
	}

	if pos, ok := s.index[id]; ok {
		s.vectors[pos] = vector
		s.norms[pos] = norm(vector)
		return nil
	}

	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
	s.vectors = append(s.vectors, vector)
	s.norms = append(s.norms, norm(vector))
	return nil
}

// Len returns the number of vectors in the set.
func (s *Set) Len() int {
	return len(s.ids)
}

// Dimension returns the vector dimension, or 0 for an empty set.
func (s *Set) Dimension() int {
	return s.dimension
}

// Has reports whether id has a vector.
func (s *Set) Has(id int64) bool {
	_, ok := s.index[id]
	return ok
}

// Rank scores every vector against query and returns matches with
// similarity >= floor, sorted by descending similarity. Equal similarities
// keep insertion order.
func (s *Set) Rank(query []float32, floor float64) ([]Match, error) {
	if s.Len() == 0 {
		return []Match{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, set has %d", types.ErrDimensionMismatch, len(query), s.dimension)
	}

	qn := norm(query)
	matches := make([]Match, 0, len(s.ids))
	for i, id := range s.ids {
		sim := cosine(query, qn, s.vectors[i], s.norms[i])
		if sim < floor {
			continue
		}
		matches = append(matches, Match{ID: id, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	return matches, nil
}

// Similarities returns the similarity of every vector in the set, unpruned.
func (s *Set) Similarities(query []float32) (map[int64]float64, error) {
	out := make(map[int64]float64, len(s.ids))
	if s.Len() == 0 {
		return out, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, set has %d", types.ErrDimensionMismatch, len(query), s.dimension)
	}

	qn := norm(query)
	for i, id := range s.ids {
		out[id] = cosine(query, qn, s.vectors[i], s.norms[i])
	}
	return out, nil
}

// Store keeps one Set per entity kind.
type Store struct {
	sets map[types.EntityKind]*Set
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sets: make(map[types.EntityKind]*Set)}
}

// Add appends a vector to the set for kind.
func (st *Store) Add(kind types.EntityKind, id int64, vector []float32) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidEntityKind, kind)
	}
	set, ok := st.sets[kind]
	if !ok {
		set = NewSet()
		st.sets[kind] = set
	}
	return set.Add(id, vector)
}

// Set returns the set for kind, creating an empty one if needed.
func (st *Store) Set(kind types.EntityKind) *Set {
	set, ok := st.sets[kind]
	if !ok {
		set = NewSet()
		st.sets[kind] = set
	}
	return set
}

// TopSimilar ranks all vectors of kind against query and drops those below floor.
func (st *Store) TopSimilar(kind types.EntityKind, query []float32, floor float64) ([]Match, error) {
	return st.Set(kind).Rank(query, floor)
}

// Similarities returns unpruned similarities for kind keyed by entity id.
func (st *Store) Similarities(kind types.EntityKind, query []float32) (map[int64]float64, error) {
	return st.Set(kind).Similarities(query)
}

// Cosine returns the cosine similarity of a and b. A zero vector on either
// side yields 0. Vectors of different length yield ErrDimensionMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", types.ErrDimensionMismatch, len(a), len(b))
	}
	return cosine(a, norm(a), b, norm(b)), nil
}

func cosine(a []float32, na float64, b []float32, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
