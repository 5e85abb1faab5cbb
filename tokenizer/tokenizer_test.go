package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple", "hello world", []string{"hello", "world"}},
		{"case folding", "Hello WORLD", []string{"hello", "world"}},
		{"punctuation", "re: [PATCH v2] fix-up, please!", []string{"re", "patch", "v2", "fix", "up", "please"}},
		{"email address", "alice@example.com", []string{"alice", "example", "com"}},
		{"digits kept", "meeting at 10am", []string{"meeting", "at", "10am"}},
		{"unicode", "Überraschung für dich", []string{"überraschung", "für", "dich"}},
		{"empty", "", nil},
		{"only separators", " .,;!? ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeDropsOversizedTerms(t *testing.T) {
	huge := strings.Repeat("a", MaxTermBytes+1)
	got := Tokenize("small " + huge + " words")
	want := []string{"small", "words"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Exactly at the limit survives.
	edge := strings.Repeat("b", MaxTermBytes)
	if got := Tokenize(edge); len(got) != 1 || got[0] != edge {
		t.Errorf("term at limit dropped: %v", got)
	}
}

func TestTokenizeFieldsKeepsDuplicates(t *testing.T) {
	got := TokenizeFields([]string{"hello hello", "hello there"})
	want := []string{"hello", "hello", "hello", "there"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	counts := TermCounts(got)
	if counts["hello"] != 3 || counts["there"] != 1 {
		t.Errorf("TermCounts = %v", counts)
	}
}

func TestIndexQuerySymmetry(t *testing.T) {
	// Whatever the index side produces, the query side must reproduce.
	raw := "Re: Фото from last week's trip (IMG_1234.jpg)"
	indexed := Tokenize(raw)
	for _, term := range indexed {
		q := Tokenize(term)
		if len(q) != 1 || q[0] != term {
			t.Errorf("term %q does not survive re-tokenization: %v", term, q)
		}
	}
}
