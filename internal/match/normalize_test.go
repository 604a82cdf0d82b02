package match

import (
	"errors"
	"testing"
)

func TestNormalizeBasic(t *testing.T) {
	n, err := Normalize("  robert   smith ")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if n.Display != "Robert Smith" {
		t.Errorf("expected display %q, got %q", "Robert Smith", n.Display)
	}
	if n.Comparison != "robert smith" {
		t.Errorf("expected comparison %q, got %q", "robert smith", n.Comparison)
	}
}

func TestNormalizeEmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		_, err := Normalize(input)
		if !errors.Is(err, ErrEmptyName) {
			t.Errorf("Normalize(%q): expected ErrEmptyName, got %v", input, err)
		}
	}
}

func TestNormalizeCorporateSuffixes(t *testing.T) {
	cases := []struct {
		raw        string
		comparison string
	}{
		{"Acme Concrete Inc", "acme concrete"},
		{"Acme Concrete, Inc.", "acme concrete"},
		{"Acme Concrete LLC", "acme concrete"},
		{"Beta Corp", "beta"},
		{"Gamma Ltd.", "gamma"},
		{"Delta Co", "delta"},
		{"Epsilon Incorporated", "epsilon"},
		// Suffix-only names keep their last token
		{"Co", "co"},
	}

	for _, tc := range cases {
		n, err := Normalize(tc.raw)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", tc.raw, err)
		}
		if n.Comparison != tc.comparison {
			t.Errorf("Normalize(%q): expected comparison %q, got %q", tc.raw, tc.comparison, n.Comparison)
		}
	}
}

func TestNormalizePreservesSuffixInDisplay(t *testing.T) {
	n, err := Normalize("acme concrete inc")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if n.Display != "Acme Concrete Inc" {
		t.Errorf("display should preserve suffix, got %q", n.Display)
	}
}

func TestNormalizePunctuation(t *testing.T) {
	n, err := Normalize("O'Brien, Patrick")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if n.Comparison != "obrien patrick" {
		t.Errorf("expected %q, got %q", "obrien patrick", n.Comparison)
	}
}

func TestNormalizeHyphenSplits(t *testing.T) {
	n, err := Normalize("Smith-Jones")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if n.Comparison != "smith jones" {
		t.Errorf("expected %q, got %q", "smith jones", n.Comparison)
	}
}

func TestTitleCasePreservesInitialisms(t *testing.T) {
	n, err := Normalize("IBM consulting")
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if n.Display != "IBM Consulting" {
		t.Errorf("expected %q, got %q", "IBM Consulting", n.Display)
	}
}
