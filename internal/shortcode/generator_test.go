package shortcode

import (
	"strings"
	"testing"
)

func TestGenerateLengthAndAlphabet(t *testing.T) {
	gen := NewDefaultGenerator()
	for i := 0; i < 100; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if len(code) != DefaultCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), DefaultCodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(alphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
	}
}

func TestGenerateNoImmediateCollisions(t *testing.T) {
	gen := NewDefaultGenerator()
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if seen[code] {
			t.Fatalf("duplicate code %q within 1000 generations", code)
		}
		seen[code] = true
	}
}

func TestGenerateCustomLength(t *testing.T) {
	gen := NewGenerator(12)
	code, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(code) != 12 {
		t.Fatalf("code %q has length %d, want 12", code, len(code))
	}
}

func TestValidAlias(t *testing.T) {
	cases := []struct {
		alias string
		want  bool
	}{
		{"abc", true},
		{"my-link_1", true},
		{"ABC-def", true},
		{strings.Repeat("a", 50), true},
		{"", false},
		{"ab", false},
		{strings.Repeat("a", 51), false},
		{"has space", false},
		{"has/slash", false},
		{"café", false},
	}
	for _, tc := range cases {
		if got := ValidAlias(tc.alias); got != tc.want {
			t.Fatalf("ValidAlias(%q) = %v, want %v", tc.alias, got, tc.want)
		}
	}
}
