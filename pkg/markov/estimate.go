package markov

// Frequency returns how many times kgram starts a window in the circular
// training text, or 0 if it never does. kgram must be Order() runes long.
func (m *Model) Frequency(kgram string) (int, error) {
	if err := m.checkKGram(kgram); err != nil {
		return 0, err
	}
	return m.kgramCounts[kgram], nil
}

// TransitionFrequency returns how many times c immediately follows kgram in the
// circular training text. kgram must be Order() runes long.
func (m *Model) TransitionFrequency(kgram string, c rune) (int, error) {
	if err := m.checkKGram(kgram); err != nil {
		return 0, err
	}
	return m.transitions[transitionKey{kgram: kgram, next: c}], nil
}

// Probability estimates P(c | kgram). When kgram was observed in training this
// is its transition count to c divided by its total transition count. When it
// was never observed the estimate falls back to the global frequency of c in
// the training text, which is 0 for runes outside the alphabet.
func (m *Model) Probability(kgram string, c rune) (float64, error) {
	if err := m.checkKGram(kgram); err != nil {
		return 0, err
	}
	return m.probability(kgram, c), nil
}

// Distribution returns P(c | kgram) for every rune of Alphabet(), in the same
// order. The values sum to 1.
func (m *Model) Distribution(kgram string) ([]float64, error) {
	if err := m.checkKGram(kgram); err != nil {
		return nil, err
	}
	weights, total := m.weights(kgram)
	dist := make([]float64, len(weights))
	for i, w := range weights {
		dist[i] = float64(w) / float64(total)
	}
	return dist, nil
}

// probability is Probability without the length check.
func (m *Model) probability(kgram string, c rune) float64 {
	// The transitions out of a k-gram always sum to its count.
	if total := m.kgramCounts[kgram]; total > 0 {
		return float64(m.transitions[transitionKey{kgram: kgram, next: c}]) / float64(total)
	}
	return float64(m.charCounts[c]) / float64(m.length)
}

// weights returns the integer weights behind the distribution of the rune that
// follows kgram, aligned with the alphabet, and their sum. Unseen k-grams get
// the unigram counts of the training text.
func (m *Model) weights(kgram string) ([]int, int) {
	weights := make([]int, len(m.alphabet))
	total := m.kgramCounts[kgram]
	if total > 0 {
		for i, c := range m.alphabet {
			weights[i] = m.transitions[transitionKey{kgram: kgram, next: c}]
		}
		return weights, total
	}
	for i, c := range m.alphabet {
		weights[i] = m.charCounts[c]
	}
	return weights, m.length
}
