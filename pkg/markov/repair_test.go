package markov

import (
	"errors"
	"strings"
	"testing"
)

func TestReplaceUnknown(t *testing.T) {
	m := mustModel(t, dickensTxt, 4)

	corrupted := "it w~s th~ bes~ of tim~s, i~ was ~he wo~st of~times."
	got, err := m.ReplaceUnknown(corrupted)
	if err != nil {
		t.Fatalf("ReplaceUnknown failed: %v", err)
	}
	if got != dickensTxt {
		t.Errorf("ReplaceUnknown() = %q, want %q", got, dickensTxt)
	}
}

func TestReplaceUnknownCases(t *testing.T) {
	testCases := []struct {
		name        string
		text        string
		order       int
		input       string
		expected    string
		expectError error
	}{
		{
			name:     "No markers",
			text:     dickensTxt,
			order:    4,
			input:    "it was the best",
			expected: "it was the best",
		},
		{
			name:     "Earlier repairs inform later ones",
			text:     "abcd",
			order:    1,
			input:    "a~~d",
			expected: "abcd",
		},
		{
			name:     "Marker exactly k from each end",
			text:     "abcd",
			order:    2,
			input:    "ab~da",
			expected: "abcda",
		},
		{
			name:        "Marker too close to start",
			text:        dickensTxt,
			order:       4,
			input:       "it~was the best",
			expectError: ErrInsufficientContext,
		},
		{
			name:        "Marker too close to end",
			text:        dickensTxt,
			order:       4,
			input:       "it was the be~t",
			expectError: ErrInsufficientContext,
		},
		{
			name:        "Repairable marker before an unrepairable one",
			text:        dickensTxt,
			order:       4,
			input:       "it w~s the be~t",
			expectError: ErrInsufficientContext,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := mustModel(t, tc.text, tc.order)
			output, err := m.ReplaceUnknown(tc.input)

			if tc.expectError != nil {
				if !errors.Is(err, tc.expectError) {
					t.Errorf("expected error %v, got %v", tc.expectError, err)
				}
				if output != "" {
					t.Errorf("expected no partial output, got %q", output)
				}
				return
			}

			if err != nil {
				t.Fatalf("got unexpected error: %v", err)
			}
			if output != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, output)
			}
			if strings.ContainsRune(output, Unknown) {
				t.Errorf("output %q still contains a marker", output)
			}
		})
	}
}

func TestMostLikely(t *testing.T) {
	m := mustModel(t, dickensTxt, 4)

	got, err := m.MostLikely("s th~ bes")
	if err != nil {
		t.Fatalf("MostLikely failed: %v", err)
	}
	if got != 'e' {
		t.Errorf("MostLikely(\"s th~ bes\") = %q, want 'e'", got)
	}

	// The centre rune is ignored, even when it is outside the alphabet.
	got, _ = m.MostLikely("s thZ bes")
	if got != 'e' {
		t.Errorf("MostLikely(\"s thZ bes\") = %q, want 'e'", got)
	}
}

func TestMostLikelyTieBreak(t *testing.T) {
	// After 'a' both 'a' and 'b' are equally likely; the first in the alphabet wins.
	m := mustModel(t, "aabb", 1)
	for i := 0; i < 10; i++ {
		got, err := m.MostLikely("a~b")
		if err != nil {
			t.Fatalf("MostLikely failed: %v", err)
		}
		if got != 'a' {
			t.Fatalf("MostLikely(\"a~b\") = %q, want 'a'", got)
		}
	}
}

func TestMostLikelyLengthValidation(t *testing.T) {
	m := mustModel(t, dickensTxt, 4)
	for _, context := range []string{"", "s th~ be", "s th~ best", "it was the best"} {
		if _, err := m.MostLikely(context); !errors.Is(err, ErrInvalidLength) {
			t.Errorf("MostLikely(%q) error = %v, want ErrInvalidLength", context, err)
		}
	}
}

func BenchmarkReplaceUnknown(b *testing.B) {
	m, err := New(dickensTxt, 4)
	if err != nil {
		b.Fatal(err)
	}
	corrupted := "it w~s th~ bes~ of tim~s, i~ was ~he wo~st of~times."

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.ReplaceUnknown(corrupted); err != nil {
			b.Fatalf("ReplaceUnknown() failed: %v", err)
		}
	}
}
