package markov

import (
	"fmt"
	"slices"
	"unicode/utf8"
)

// sortedAlphabet returns the keys of counts in code point order. Sampling and
// repair always walk the alphabet in this order, which keeps their output
// reproducible.
func sortedAlphabet(counts map[rune]int) []rune {
	alphabet := make([]rune, 0, len(counts))
	for c := range counts {
		alphabet = append(alphabet, c)
	}
	slices.Sort(alphabet)
	return alphabet
}

// checkKGram validates that kgram is exactly `order` runes long.
func (m *Model) checkKGram(kgram string) error {
	if n := utf8.RuneCountInString(kgram); n != m.order {
		return fmt.Errorf("%w: k-gram %q has length %d, want %d", ErrInvalidLength, kgram, n, m.order)
	}
	return nil
}

// contextLen is the length of a repair window: k runes each side of the target.
func (m *Model) contextLen() int {
	return 2*m.order + 1
}

// slide drops the first rune of window and appends next.
func slide(window []rune, next rune) []rune {
	copy(window, window[1:])
	window[len(window)-1] = next
	return window
}
