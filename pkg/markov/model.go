package markov

import (
	"fmt"
	"strings"
)

// Unknown is the marker rune that ReplaceUnknown restores. It may never appear
// in training text, so it is never part of a model's alphabet.
const Unknown = '~'

// transitionKey identifies a (k-gram, next rune) pair.
type transitionKey struct {
	kgram string
	next  rune
}

// Model is a trained order-k character model. It is built once by New (or
// Import / Store.LoadModel) and never mutated afterwards, so a Model can be
// shared by any number of goroutines.
type Model struct {
	order       int
	length      int
	alphabet    []rune // sorted by code point
	charCounts  map[rune]int
	kgramCounts map[string]int
	transitions map[transitionKey]int
}

// New trains a model of the given order on text. The text is treated as
// circular: its first `order` runes are appended to its end, so each of its
// runes starts exactly one k-gram and every k-gram has a successor.
//
// The order must be between 1 and the rune length of text, and text must not
// contain the Unknown marker.
func New(text string, order int) (*Model, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	runes := []rune(text)
	n := len(runes)
	if order <= 0 || order > n {
		return nil, fmt.Errorf("%w: order %d for text of length %d", ErrInvalidOrder, order, n)
	}
	if strings.ContainsRune(text, Unknown) {
		return nil, fmt.Errorf("%w: %q", ErrReservedRune, Unknown)
	}

	extended := make([]rune, 0, n+order)
	extended = append(extended, runes...)
	extended = append(extended, runes[:order]...)

	m := newEmptyModel(order, n)
	for i := 0; i < n; i++ {
		kgram := string(extended[i : i+order])
		next := extended[i+order]
		m.charCounts[runes[i]]++
		m.kgramCounts[kgram]++
		m.transitions[transitionKey{kgram: kgram, next: next}]++
	}
	m.alphabet = sortedAlphabet(m.charCounts)

	return m, nil
}

func newEmptyModel(order, length int) *Model {
	return &Model{
		order:       order,
		length:      length,
		charCounts:  make(map[rune]int),
		kgramCounts: make(map[string]int),
		transitions: make(map[transitionKey]int),
	}
}

// fromCounts rebuilds a model from rune and transition counts, as read back
// from an export or from the database. k-gram counts are derived from the
// transitions, and every invariant New guarantees is checked.
func fromCounts(order, length int, chars map[rune]int, transitions map[transitionKey]int) (*Model, error) {
	if order <= 0 || order > length {
		return nil, fmt.Errorf("%w: order %d for text of length %d", ErrInvalidOrder, order, length)
	}

	m := newEmptyModel(order, length)
	charTotal := 0
	for c, count := range chars {
		if count <= 0 {
			return nil, fmt.Errorf("%w: rune %q has count %d", ErrCorruptModel, c, count)
		}
		if c == Unknown {
			return nil, fmt.Errorf("%w: alphabet contains the unknown marker", ErrCorruptModel)
		}
		m.charCounts[c] = count
		charTotal += count
	}
	if charTotal != length {
		return nil, fmt.Errorf("%w: rune counts sum to %d, want %d", ErrCorruptModel, charTotal, length)
	}

	kgramTotal := 0
	successors := make(map[rune]int, len(m.charCounts))
	for key, count := range transitions {
		if count <= 0 {
			return nil, fmt.Errorf("%w: transition %q->%q has count %d", ErrCorruptModel, key.kgram, key.next, count)
		}
		if _, ok := m.charCounts[key.next]; !ok {
			return nil, fmt.Errorf("%w: transition %q->%q leaves the alphabet", ErrCorruptModel, key.kgram, key.next)
		}
		kgram := []rune(key.kgram)
		if len(kgram) != order {
			return nil, fmt.Errorf("%w: k-gram %q has length %d, want %d", ErrCorruptModel, key.kgram, len(kgram), order)
		}
		for _, c := range kgram {
			if _, ok := m.charCounts[c]; !ok {
				return nil, fmt.Errorf("%w: k-gram %q leaves the alphabet", ErrCorruptModel, key.kgram)
			}
		}
		m.transitions[key] = count
		m.kgramCounts[key.kgram] += count
		successors[key.next] += count
		kgramTotal += count
	}
	if kgramTotal != length {
		return nil, fmt.Errorf("%w: k-gram counts sum to %d, want %d", ErrCorruptModel, kgramTotal, length)
	}
	// On circular text every occurrence of a rune is the successor of exactly one k-gram.
	for c, count := range m.charCounts {
		if successors[c] != count {
			return nil, fmt.Errorf("%w: rune %q follows %d k-grams, want %d", ErrCorruptModel, c, successors[c], count)
		}
	}

	m.alphabet = sortedAlphabet(m.charCounts)
	return m, nil
}

// Order returns k, the number of preceding runes the model conditions on.
func (m *Model) Order() int {
	return m.order
}

// Len returns the rune length of the training text.
func (m *Model) Len() int {
	return m.length
}

// Alphabet returns the distinct runes of the training text in code point order.
// The returned slice is a copy.
func (m *Model) Alphabet() []rune {
	alphabet := make([]rune, len(m.alphabet))
	copy(alphabet, m.alphabet)
	return alphabet
}

// CharFrequency returns how many times c occurs in the training text.
func (m *Model) CharFrequency(c rune) int {
	return m.charCounts[c]
}

// MostFrequent returns the k-gram with the highest count. Ties go to the
// lexicographically smallest k-gram.
func (m *Model) MostFrequent() string {
	var best string
	bestCount := 0
	for kgram, count := range m.kgramCounts {
		if count > bestCount || (count == bestCount && kgram < best) {
			best, bestCount = kgram, count
		}
	}
	return best
}
