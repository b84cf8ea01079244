package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dshills/curriculum-search/pkg/types"
)

// File names inside a data directory
const (
	GoalsFile        = "doelzinnen.json"
	ElaborationsFile = "uitwerkingen.json"
)

// Corpus is a parsed curriculum export
type Corpus struct {
	Goals        []*types.Goal
	Elaborations []*types.Elaboration
}

// externalID accepts ids exported as either JSON strings or numbers
type externalID string

func (id *externalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = externalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = externalID(n.String())
	return nil
}

// idList accepts a list of ids, a single id, or null
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var raw []externalID
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make([]string, 0, len(raw))
		for _, id := range raw {
			if id != "" {
				out = append(out, string(id))
			}
		}
		*l = out
		return nil
	}
	var single externalID
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	if single == "" {
		*l = nil
		return nil
	}
	*l = idList{string(single)}
	return nil
}

// flag accepts integers, booleans and numeric strings
type flag struct {
	value *int
}

func (f *flag) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "null", `""`:
		f.value = nil
		return nil
	case "true":
		v := 1
		f.value = &v
		return nil
	case "false":
		v := 0
		f.value = &v
		return nil
	default:
		if len(s) > 1 && s[0] == '"' {
			s = s[1 : len(s)-1]
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid flag %s: %w", data, err)
		}
		f.value = &v
		return nil
	}
}

type goalRecord struct {
	ID             externalID `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Prefix         string     `json:"prefix"`
	Soort          string     `json:"soort"`
	CE             flag       `json:"ce"`
	SE             flag       `json:"se"`
	Status         string     `json:"status"`
	ElaborationIDs idList     `json:"fo_uitwerking_id"`
}

type elaborationRecord struct {
	ID          externalID `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Prefix      string     `json:"prefix"`
	LevelIDs    idList     `json:"niveau_id"`
	Status      string     `json:"status"`
}

// ParseGoals decodes a goals export.
func ParseGoals(data []byte) ([]*types.Goal, error) {
	var records []goalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}

	goals := make([]*types.Goal, len(records))
	for i, r := range records {
		goals[i] = &types.Goal{
			ExternalID:     string(r.ID),
			Title:          r.Title,
			Description:    r.Description,
			Prefix:         r.Prefix,
			Kind:           r.Soort,
			CE:             r.CE.value,
			SE:             r.SE.value,
			Status:         r.Status,
			ElaborationIDs: r.ElaborationIDs,
		}
	}
	return goals, nil
}

// ParseElaborations decodes an elaborations export.
func ParseElaborations(data []byte) ([]*types.Elaboration, error) {
	var records []elaborationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode elaborations: %w", err)
	}

	elabs := make([]*types.Elaboration, len(records))
	for i, r := range records {
		elabs[i] = &types.Elaboration{
			ExternalID:  string(r.ID),
			Title:       r.Title,
			Description: r.Description,
			Prefix:      r.Prefix,
			LevelIDs:    r.LevelIDs,
			Status:      r.Status,
		}
	}
	return elabs, nil
}

// LoadCorpus reads both export files from dir.
func LoadCorpus(dir string) (*Corpus, error) {
	goalData, err := os.ReadFile(filepath.Join(dir, GoalsFile))
	if err != nil {
		return nil, fmt.Errorf("read goals: %w", err)
	}
	goals, err := ParseGoals(goalData)
	if err != nil {
		return nil, err
	}

	elabData, err := os.ReadFile(filepath.Join(dir, ElaborationsFile))
	if err != nil {
		return nil, fmt.Errorf("read elaborations: %w", err)
	}
	elabs, err := ParseElaborations(elabData)
	if err != nil {
		return nil, err
	}

	return &Corpus{Goals: goals, Elaborations: elabs}, nil
}
