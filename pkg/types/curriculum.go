package types

import "strings"

// EntityKind identifies one of the two searchable curriculum entity kinds
type EntityKind string

const (
	KindGoal        EntityKind = "goal"
	KindElaboration EntityKind = "elaboration"
)

// Valid reports whether k is a known entity kind
func (k EntityKind) Valid() bool {
	return k == KindGoal || k == KindElaboration
}

// Goal is a learning goal, the primary searchable entity
type Goal struct {
	ID          int64  `json:"id"`
	ExternalID  string `json:"external_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Prefix      string `json:"prefix,omitempty"`
	Kind        string `json:"kind,omitempty"` // category tag ("soort")
	CE          *int   `json:"ce,omitempty"`   // Nullable
	SE          *int   `json:"se,omitempty"`   // Nullable
	Status      string `json:"status,omitempty"`

	// ElaborationIDs are external ids of linked elaborations, in curriculum order
	ElaborationIDs []string `json:"elaboration_ids"`
}

// Elaboration is an elaboration of one or more goals
type Elaboration struct {
	ID          int64    `json:"id"`
	ExternalID  string   `json:"external_id"`
	Title       string   `json:"title,omitempty"` // Optional
	Description string   `json:"description"`
	Prefix      string   `json:"prefix,omitempty"`
	LevelIDs    []string `json:"level_ids,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// GoalDetail is a goal with its linked elaborations resolved inline
type GoalDetail struct {
	Goal
	Elaborations []Elaboration `json:"elaborations"`
}

// Validate checks the fields ingestion requires
func (g *Goal) Validate() error {
	if g.ExternalID == "" {
		return ErrMissingExternalID
	}
	if g.Title == "" {
		return ErrMissingTitle
	}
	if g.Description == "" {
		return ErrMissingDescription
	}
	return nil
}

// EmbeddingText returns the text that represents the goal in vector space
func (g *Goal) EmbeddingText() string {
	return CombineText(g.Title, g.Description)
}

// Validate checks the fields ingestion requires
func (e *Elaboration) Validate() error {
	if e.ExternalID == "" {
		return ErrMissingExternalID
	}
	if e.Description == "" {
		return ErrMissingDescription
	}
	return nil
}

// EmbeddingText returns the text that represents the elaboration in vector space
func (e *Elaboration) EmbeddingText() string {
	return CombineText(e.Title, e.Description)
}

// CombineText joins a title and description for embedding.
// An empty title yields the description alone.
func CombineText(title, description string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return description
	}
	return title + "\n" + description
}
