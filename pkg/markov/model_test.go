package markov

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

func TestNew(t *testing.T) {
	testCases := []struct {
		name    string
		text    string
		order   int
		wantErr error
	}{
		{name: "Order one", text: geneText, order: 1},
		{name: "Order equals length", text: "abc", order: 3},
		{name: "Multibyte runes", text: "héllo wörld", order: 2},
		{name: "Empty text", text: "", order: 1, wantErr: ErrEmptyText},
		{name: "Zero order", text: geneText, order: 0, wantErr: ErrInvalidOrder},
		{name: "Negative order", text: geneText, order: -2, wantErr: ErrInvalidOrder},
		{name: "Order longer than text", text: "abc", order: 4, wantErr: ErrInvalidOrder},
		{name: "Order counts runes not bytes", text: "héé", order: 4, wantErr: ErrInvalidOrder},
		{name: "Text contains marker", text: "a~b", order: 1, wantErr: ErrReservedRune},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := New(tc.text, tc.order)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("New(%q, %d) error = %v, want %v", tc.text, tc.order, err, tc.wantErr)
				}
				if m != nil {
					t.Errorf("expected nil model on error, got %+v", m)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q, %d) unexpected error: %v", tc.text, tc.order, err)
			}
			if m.Order() != tc.order {
				t.Errorf("Order() = %d, want %d", m.Order(), tc.order)
			}
		})
	}
}

func TestCountInvariants(t *testing.T) {
	texts := []string{geneText, dickensTxt, "aaaa", "ab", "héllo wörld"}
	for _, text := range texts {
		for order := 1; order <= 4; order++ {
			t.Run(fmt.Sprintf("%s/k=%d", text, order), func(t *testing.T) {
				m, err := New(text, order)
				if err != nil {
					t.Skipf("order not valid for this text: %v", err)
				}
				n := len([]rune(text))
				if m.Len() != n {
					t.Errorf("Len() = %d, want %d", m.Len(), n)
				}

				charTotal := 0
				for _, c := range m.Alphabet() {
					charTotal += m.CharFrequency(c)
				}
				if charTotal != n {
					t.Errorf("sum of char counts = %d, want %d", charTotal, n)
				}

				kgramTotal := 0
				for kgram, count := range m.kgramCounts {
					kgramTotal += count
					transitionTotal := 0
					for _, c := range m.Alphabet() {
						f, err := m.TransitionFrequency(kgram, c)
						if err != nil {
							t.Fatalf("TransitionFrequency(%q, %q) failed: %v", kgram, c, err)
						}
						transitionTotal += f
					}
					f, _ := m.Frequency(kgram)
					if f != transitionTotal {
						t.Errorf("Frequency(%q) = %d, but transitions sum to %d", kgram, f, transitionTotal)
					}
				}
				if kgramTotal != n {
					t.Errorf("sum of k-gram counts = %d, want %d", kgramTotal, n)
				}
			})
		}
	}
}

func TestAlphabet(t *testing.T) {
	m := mustModel(t, "banana", 2)

	want := []rune{'a', 'b', 'n'}
	got := m.Alphabet()
	if !slices.Equal(got, want) {
		t.Fatalf("Alphabet() = %q, want %q", got, want)
	}

	// The returned slice must be a copy.
	got[0] = 'z'
	if m.Alphabet()[0] != 'a' {
		t.Error("modifying the result of Alphabet() changed the model")
	}

	if f := m.CharFrequency('a'); f != 3 {
		t.Errorf("CharFrequency('a') = %d, want 3", f)
	}
	if f := m.CharFrequency('x'); f != 0 {
		t.Errorf("CharFrequency('x') = %d, want 0", f)
	}
}

func TestMostFrequent(t *testing.T) {
	m := mustModel(t, geneText, 3)
	if got := m.MostFrequent(); got != "gag" {
		t.Errorf("MostFrequent() = %q, want %q", got, "gag")
	}

	// Every 1-gram of "abab" occurs twice; the smallest wins the tie.
	m = mustModel(t, "abab", 1)
	if got := m.MostFrequent(); got != "a" {
		t.Errorf("MostFrequent() = %q, want %q", got, "a")
	}
}

func TestStats(t *testing.T) {
	m := mustModel(t, "abab", 1)
	stats := m.Stats()
	if stats.Order != 1 || stats.Length != 4 || stats.AlphabetSize != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.DistinctKGrams != 2 || stats.DistinctTransitions != 2 {
		t.Errorf("unexpected k-gram stats: %+v", stats)
	}
	// Every transition is certain, so there is no uncertainty left.
	if stats.Entropy != 0 {
		t.Errorf("Entropy = %v, want 0", stats.Entropy)
	}

	m = mustModel(t, "aabb", 1)
	// a->a, a->b, b->b, b->a: each k-gram has a fair coin as successor.
	if e := m.Stats().Entropy; e < 0.999 || e > 1.001 {
		t.Errorf("Entropy = %v, want 1", e)
	}
}

func BenchmarkNew(b *testing.B) {
	corpus := createBenchmarkCorpus()

	for _, order := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			b.SetBytes(int64(len(corpus)))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := New(corpus, order); err != nil {
					b.Fatalf("New() failed: %v", err)
				}
			}
		})
	}
}
