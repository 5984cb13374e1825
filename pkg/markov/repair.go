package markov

import (
	"fmt"
	"math"
)

// smoothing is added to every probability before taking its log, so an
// impossible transition scores log(0.01) rather than -Inf.
const smoothing = 0.01

// MostLikely infers the rune at the centre of context, which must be exactly
// 2*Order()+1 runes long. Every alphabet rune is tried at the centre and scored
// by the sum of log(P(next | kgram) + 0.01) over the Order() windows whose
// k-gram or successor is the centre position; the highest score wins. Exact
// ties go to the rune that comes first in the alphabet.
func (m *Model) MostLikely(context string) (rune, error) {
	window := []rune(context)
	if len(window) != m.contextLen() {
		return 0, fmt.Errorf("%w: context %q has length %d, want %d", ErrInvalidLength, context, len(window), m.contextLen())
	}
	return m.mostLikely(window), nil
}

// mostLikely scores candidates in place; window is restored before returning.
func (m *Model) mostLikely(window []rune) rune {
	k := m.order
	original := window[k]
	defer func() { window[k] = original }()

	best := m.alphabet[0]
	bestScore := math.Inf(-1)
	for _, c := range m.alphabet {
		window[k] = c
		var score float64
		for i := 0; i < k; i++ {
			score += math.Log(m.probability(string(window[i:i+k]), window[i+k]) + smoothing)
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// ReplaceUnknown restores every Unknown marker in corrupted, left to right.
// Each marker is inferred with MostLikely from the 2k+1 runes centred on it,
// taken from the text as repaired so far, so earlier repairs inform later ones.
//
// A marker closer than Order() runes to either end has no full context; the
// whole call then fails with ErrInsufficientContext and nothing is returned.
func (m *Model) ReplaceUnknown(corrupted string) (string, error) {
	text := []rune(corrupted)
	k := m.order
	for i, c := range text {
		if c != Unknown {
			continue
		}
		if i < k || i+k >= len(text) {
			return "", fmt.Errorf("%w: marker at offset %d of %d needs %d runes on each side", ErrInsufficientContext, i, len(text), k)
		}
	}

	for i := range text {
		if text[i] != Unknown {
			continue
		}
		text[i] = m.mostLikely(text[i-k : i+k+1])
	}
	return string(text), nil
}
