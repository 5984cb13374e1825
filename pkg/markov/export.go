package markov

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"
)

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export. k-gram counts are not stored; they are
// the row sums of the transitions.
type ExportedModel struct {
	Order       int                  `json:"order"`
	Length      int                  `json:"length"`
	Chars       map[string]int       `json:"chars"` // rune -> count
	Transitions []ExportedTransition `json:"transitions"`
}

// ExportedTransition is the serializable representation of a single
// k-gram -> rune link, used within an ExportedModel.
type ExportedTransition struct {
	KGram     string `json:"kgram"`
	Next      string `json:"next"`
	Frequency int    `json:"frequency"`
}

// transition is one (k-gram, next, count) row, the unit both the exporter and
// the Store write out.
type transition struct {
	kgram string
	next  rune
	count int
}

// sortedTransitions lists every transition ordered by k-gram, then by next rune.
func (m *Model) sortedTransitions() []transition {
	rows := make([]transition, 0, len(m.transitions))
	for key, count := range m.transitions {
		rows = append(rows, transition{kgram: key.kgram, next: key.next, count: count})
	}
	slices.SortFunc(rows, func(a, b transition) int {
		if c := strings.Compare(a.kgram, b.kgram); c != 0 {
			return c
		}
		return int(a.next - b.next)
	})
	return rows
}

// Exported returns the serializable form of m.
func (m *Model) Exported() ExportedModel {
	chars := make(map[string]int, len(m.charCounts))
	for c, count := range m.charCounts {
		chars[string(c)] = count
	}
	rows := m.sortedTransitions()
	transitions := make([]ExportedTransition, len(rows))
	for i, row := range rows {
		transitions[i] = ExportedTransition{KGram: row.kgram, Next: string(row.next), Frequency: row.count}
	}
	return ExportedModel{
		Order:       m.order,
		Length:      m.length,
		Chars:       chars,
		Transitions: transitions,
	}
}

// Export serializes the model as indented JSON to w. This is useful for
// backups or for moving a model between stores.
func (m *Model) Export(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m.Exported())
}

// Import reads a JSON model written by Export and rebuilds it. The counts are
// checked against the same invariants New guarantees; violations are reported
// as ErrCorruptModel.
func Import(r io.Reader) (*Model, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("failed to decode json model: %w", err)
	}
	return imported.Model()
}

// Model rebuilds a Model from its serializable form.
func (e ExportedModel) Model() (*Model, error) {
	chars := make(map[rune]int, len(e.Chars))
	for text, count := range e.Chars {
		c, err := singleRune(text)
		if err != nil {
			return nil, err
		}
		chars[c] = count
	}

	transitions := make(map[transitionKey]int, len(e.Transitions))
	for _, t := range e.Transitions {
		next, err := singleRune(t.Next)
		if err != nil {
			return nil, err
		}
		key := transitionKey{kgram: t.KGram, next: next}
		if _, dup := transitions[key]; dup {
			return nil, fmt.Errorf("%w: duplicate transition %q->%q", ErrCorruptModel, t.KGram, t.Next)
		}
		transitions[key] = t.Frequency
	}

	return fromCounts(e.Order, e.Length, chars, transitions)
}

func singleRune(s string) (rune, error) {
	c, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) || (c == utf8.RuneError && size == 1) {
		return 0, fmt.Errorf("%w: %q is not a single rune", ErrCorruptModel, s)
	}
	return c, nil
}
