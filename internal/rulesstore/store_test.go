package rulesstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tracer-cloud/tracerd/internal/match"
)

func TestSnapshot_Lookup_FirstMatchWins(t *testing.T) {
	snap := NewSnapshot([]match.Rule{
		{DisplayName: "bwa", Condition: match.NameIs("bwa")},
		{DisplayName: "bwa-mem2", Condition: match.NameIs("bwa")},
	}, nil)

	name, ok := snap.Lookup("bwa", "bwa mem ref.fa")
	if !ok || name != "bwa" {
		t.Fatalf("Lookup() = (%q, %v), want (\"bwa\", true)", name, ok)
	}
}

func TestSnapshot_Lookup_Blacklist(t *testing.T) {
	snap := NewSnapshot(
		[]match.Rule{{DisplayName: "python", Condition: match.NameContains("python")}},
		[]match.Rule{{Condition: match.CmdContains("--help")}},
	)

	_, ok := snap.Lookup("python3", "python3 script.py --help")
	if ok {
		t.Fatal("Lookup() matched a blacklisted command")
	}

	name, ok := snap.Lookup("python3", "python3 script.py")
	if !ok || name != "python" {
		t.Fatalf("Lookup() = (%q, %v), want (\"python\", true)", name, ok)
	}
}

func TestSnapshot_Lookup_NoMatch(t *testing.T) {
	snap := NewSnapshot([]match.Rule{{DisplayName: "star", Condition: match.NameIs("STAR")}}, nil)

	_, ok := snap.Lookup("samtools", "samtools sort")
	if ok {
		t.Fatal("Lookup() matched a process with no corresponding rule")
	}
}

func TestSnapshot_Lookup_OrOfNameIsUsesIndex(t *testing.T) {
	snap := NewSnapshot([]match.Rule{
		{DisplayName: "aligner", Condition: match.Any(match.NameIs("bwa"), match.NameIs("bowtie2"))},
	}, nil)

	for _, name := range []string{"bwa", "bowtie2"} {
		got, ok := snap.Lookup(name, "")
		if !ok || got != "aligner" {
			t.Errorf("Lookup(%q) = (%q, %v), want (\"aligner\", true)", name, got, ok)
		}
	}
}

func TestNew_LoadsEmbeddedDefaults(t *testing.T) {
	store, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(store.Snapshot().Rules) == 0 {
		t.Fatal("expected embedded default rules to be non-empty")
	}
}

func TestNew_OverlaysRulesDir(t *testing.T) {
	dir := t.TempDir()
	extra := `
rules:
  - display_name: custom-tool
    condition:
      field: process_name_is
      value: custom-tool
`
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	name, ok := store.Snapshot().Lookup("custom-tool", "custom-tool --run")
	if !ok || name != "custom-tool" {
		t.Fatalf("Lookup() = (%q, %v), want (\"custom-tool\", true)", name, ok)
	}
}

func TestStore_Reload_SwapsSnapshotAtomically(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := store.Snapshot()

	extra := `
rules:
  - display_name: reloaded-tool
    condition:
      field: process_name_is
      value: reloaded-tool
`
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Reload(dir); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	after := store.Snapshot()
	if after == before {
		t.Fatal("Reload() did not swap in a new snapshot")
	}
	if _, ok := after.Lookup("reloaded-tool", ""); !ok {
		t.Fatal("reloaded snapshot missing newly added rule")
	}
}
