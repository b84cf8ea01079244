package reranker

import (
	"fmt"
	"strings"
)

// MaxPromptElaborations caps how many linked elaborations go into a prompt
const MaxPromptElaborations = 5

// Elaboration is the part of an elaboration shown to the model
type Elaboration struct {
	Title       string
	Description string
}

// Item is one candidate to grade
type Item struct {
	Title        string
	Description  string
	Kind         string
	Elaborations []Elaboration
	Similarity   float64
}

// BuildPrompt renders the grading prompt for one item.
func BuildPrompt(query string, item Item) string {
	var b strings.Builder

	b.WriteString("Beoordeel de relevantie van dit leerdoel voor de gegeven les/opdracht.\n\n")
	b.WriteString("OPDRACHT VAN DOCENT:\n")
	b.WriteString(query)
	b.WriteString("\n\nLEERDOEL:\n")
	fmt.Fprintf(&b, "Titel: %s\n", item.Title)
	fmt.Fprintf(&b, "Beschrijving: %s\n", item.Description)
	kind := item.Kind
	if kind == "" {
		kind = "N/A"
	}
	fmt.Fprintf(&b, "Type: %s\n\n", kind)

	b.WriteString("UITWERKINGEN:\n")
	elabs := item.Elaborations
	if len(elabs) > MaxPromptElaborations {
		elabs = elabs[:MaxPromptElaborations]
	}
	if len(elabs) == 0 {
		b.WriteString("Geen uitwerkingen beschikbaar\n")
	}
	for _, e := range elabs {
		fmt.Fprintf(&b, "- %s: %s\n", e.Title, e.Description)
	}

	b.WriteString("\nScore 0-3 = niet relevant, 4-6 = mogelijk relevant, 7-10 = zeer relevant.\n")
	b.WriteString("Antwoord alleen met een getal tussen 0 en 10.")

	return b.String()
}
