package markov

import "math"

// ModelStats holds aggregated statistics for a single model.
type ModelStats struct {
	Order               int     `json:"order"`                // The number of preceding runes the model conditions on
	Length              int     `json:"length"`               // The rune length of the training text
	AlphabetSize        int     `json:"alphabet_size"`        // The number of distinct runes
	DistinctKGrams      int     `json:"distinct_kgrams"`      // The number of distinct k-grams observed
	DistinctTransitions int     `json:"distinct_transitions"` // The number of distinct k-gram -> rune links
	Entropy             float64 `json:"entropy"`              // Conditional entropy of the next rune, in bits
}

// Stats returns a snapshot of the model's size and its conditional entropy
// H(next | k-gram) weighted by how often each k-gram occurs.
func (m *Model) Stats() ModelStats {
	var entropy float64
	for key, count := range m.transitions {
		p := float64(count) / float64(m.kgramCounts[key.kgram])
		weight := float64(m.kgramCounts[key.kgram]) / float64(m.length)
		entropy -= weight * p * math.Log2(p)
	}
	return ModelStats{
		Order:               m.order,
		Length:              m.length,
		AlphabetSize:        len(m.alphabet),
		DistinctKGrams:      len(m.kgramCounts),
		DistinctTransitions: len(m.transitions),
		Entropy:             entropy,
	}
}
