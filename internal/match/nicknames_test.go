package match

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultNicknameTableEquivalence(t *testing.T) {
	table := DefaultNicknameTable()

	cases := []struct {
		a, b       string
		equivalent bool
	}{
		{"bob", "robert", true},
		{"robert", "bob", true},
		{"mike", "michael", true},
		{"liz", "elizabeth", true},
		{"bob", "michael", false},
		{"smith", "robert", false},
		{"robert", "robert", true},
		{"", "", false},
	}

	for _, tc := range cases {
		if got := table.Equivalent(tc.a, tc.b); got != tc.equivalent {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.equivalent)
		}
	}
}

func TestSharedNicknameSpansGroups(t *testing.T) {
	table := DefaultNicknameTable()

	cases := []struct {
		a, b       string
		equivalent bool
	}{
		{"sam", "samuel", true},
		{"sam", "samantha", true},
		{"samantha", "sam", true},
		{"pat", "patrick", true},
		{"pat", "patricia", true},
		// The shared short form bridges to each full name, but the
		// full names stay in their own groups.
		{"samuel", "samantha", false},
		{"patrick", "patricia", false},
	}

	for _, tc := range cases {
		if got := table.Equivalent(tc.a, tc.b); got != tc.equivalent {
			t.Errorf("Equivalent(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.equivalent)
		}
	}
}

func TestLoadNicknameTableFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nicknames.yaml")

	content := `groups:
  - [augustin, gus]
  - [maximilian, max]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	table, err := LoadNicknameTable(path)
	if err != nil {
		t.Fatalf("LoadNicknameTable failed: %v", err)
	}

	if !table.Equivalent("gus", "augustin") {
		t.Error("expected gus ↔ augustin equivalence from file")
	}
	if table.Equivalent("gus", "max") {
		t.Error("cross-group names should not be equivalent")
	}
}

func TestLoadNicknameTableErrors(t *testing.T) {
	if _, err := LoadNicknameTable("/nonexistent/path.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("groups: []\n"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if _, err := LoadNicknameTable(empty); err == nil {
		t.Error("expected error for file with no groups")
	}
}
