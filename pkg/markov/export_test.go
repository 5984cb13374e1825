package markov

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestExportImport(t *testing.T) {
	m := mustModel(t, dickensTxt, 3)

	var buf bytes.Buffer
	if err := m.Export(&buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	imported, err := Import(&buf)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	assertSameModel(t, m, imported)

	// Repair works the same on the imported model.
	got, err := imported.ReplaceUnknown("it was t~e best")
	if err != nil {
		t.Fatalf("ReplaceUnknown on imported model failed: %v", err)
	}
	want, _ := m.ReplaceUnknown("it was t~e best")
	if got != want {
		t.Errorf("imported model repaired to %q, original to %q", got, want)
	}
}

func TestExportDeterministic(t *testing.T) {
	m := mustModel(t, geneText, 2)
	var first, second bytes.Buffer
	_ = m.Export(&first)
	_ = m.Export(&second)
	if first.String() != second.String() {
		t.Error("two exports of the same model differ")
	}
}

func TestImportRejectsCorruptData(t *testing.T) {
	testCases := []struct {
		name    string
		json    string
		wantErr error
	}{
		{
			name:    "Char counts do not sum to length",
			json:    `{"order":1,"length":3,"chars":{"a":1,"b":1},"transitions":[{"kgram":"a","next":"b","frequency":1},{"kgram":"b","next":"a","frequency":1}]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "Transitions do not sum to length",
			json:    `{"order":1,"length":2,"chars":{"a":1,"b":1},"transitions":[{"kgram":"a","next":"b","frequency":1}]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "K-gram of wrong length",
			json:    `{"order":1,"length":2,"chars":{"a":1,"b":1},"transitions":[{"kgram":"ab","next":"b","frequency":1},{"kgram":"b","next":"a","frequency":1}]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "Transition leaves alphabet",
			json:    `{"order":1,"length":2,"chars":{"a":1,"b":1},"transitions":[{"kgram":"a","next":"z","frequency":1},{"kgram":"b","next":"a","frequency":1}]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "Successor counts disagree with char counts",
			json:    `{"order":1,"length":2,"chars":{"a":1,"b":1},"transitions":[{"kgram":"a","next":"a","frequency":1},{"kgram":"b","next":"a","frequency":1}]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "Char key is not a single rune",
			json:    `{"order":1,"length":2,"chars":{"ab":2},"transitions":[]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "Marker in alphabet",
			json:    `{"order":1,"length":2,"chars":{"a":1,"~":1},"transitions":[{"kgram":"a","next":"~","frequency":1},{"kgram":"~","next":"a","frequency":1}]}`,
			wantErr: ErrCorruptModel,
		},
		{
			name:    "Order larger than length",
			json:    `{"order":3,"length":2,"chars":{"a":2},"transitions":[]}`,
			wantErr: ErrInvalidOrder,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Import(strings.NewReader(tc.json))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Import() error = %v, want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := Import(strings.NewReader("{not json")); err == nil {
		t.Error("expected an error for malformed json, got nil")
	}
}

// assertSameModel compares every count of two models.
func assertSameModel(t *testing.T, want, got *Model) {
	t.Helper()
	if got.Order() != want.Order() || got.Len() != want.Len() {
		t.Fatalf("got order %d length %d, want order %d length %d", got.Order(), got.Len(), want.Order(), want.Len())
	}
	if string(got.Alphabet()) != string(want.Alphabet()) {
		t.Errorf("got alphabet %q, want %q", string(got.Alphabet()), string(want.Alphabet()))
	}
	for _, c := range want.Alphabet() {
		if got.CharFrequency(c) != want.CharFrequency(c) {
			t.Errorf("CharFrequency(%q) = %d, want %d", c, got.CharFrequency(c), want.CharFrequency(c))
		}
	}
	for kgram, count := range want.kgramCounts {
		if f, _ := got.Frequency(kgram); f != count {
			t.Errorf("Frequency(%q) = %d, want %d", kgram, f, count)
		}
	}
	if len(got.transitions) != len(want.transitions) {
		t.Errorf("got %d transitions, want %d", len(got.transitions), len(want.transitions))
	}
	for key, count := range want.transitions {
		if f, _ := got.TransitionFrequency(key.kgram, key.next); f != count {
			t.Errorf("TransitionFrequency(%q, %q) = %d, want %d", key.kgram, key.next, f, count)
		}
	}
}
