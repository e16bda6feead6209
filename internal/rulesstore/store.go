// Package rulesstore loads declarative process-matching rules at startup
// and exposes an immutable snapshot that the Target Matcher evaluates.
package rulesstore

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/tracer-cloud/tracerd/internal/match"
)

//go:embed rules/default_rules.yaml
var embeddedRules embed.FS

// Snapshot is an immutable, point-in-time view of the active rule set. It is
// safe to share across goroutines without synchronization.
type Snapshot struct {
	Rules     []match.Rule
	Blacklist []match.Rule

	// nameIndex holds, for every ProcessNameIs rule reachable either at the
	// top level or as a direct child of a top-level Or, the index of that
	// rule in Rules. Lookup still visits every rule in document order; the
	// index only lets it accept a rule confirmed by process name without
	// calling Evaluate (spec §4.2's optional optimization).
	nameIndex map[string][]int
}

func buildNameIndex(rules []match.Rule) map[string][]int {
	idx := make(map[string][]int)
	add := func(name string, ruleIdx int) {
		idx[name] = append(idx[name], ruleIdx)
	}
	for i, r := range rules {
		switch r.Condition.Kind {
		case match.ProcessNameIs:
			add(r.Condition.Value, i)
		case match.Or:
			for _, child := range r.Condition.Children {
				if child.Kind == match.ProcessNameIs {
					add(child.Value, i)
				}
			}
		}
	}
	return idx
}

// NewSnapshot builds a Snapshot from already-parsed rules, indexing it.
func NewSnapshot(rules, blacklist []match.Rule) *Snapshot {
	return &Snapshot{
		Rules:     rules,
		Blacklist: blacklist,
		nameIndex: buildNameIndex(rules),
	}
}

// indexedMatch reports whether rule i was pre-confirmed to match comm via
// nameIndex, avoiding a redundant Evaluate call for the common case of a
// plain ProcessNameIs or Or-of-ProcessNameIs rule.
func (s *Snapshot) indexedMatch(i int, comm string) bool {
	for _, idx := range s.nameIndex[comm] {
		if idx == i {
			return true
		}
	}
	return false
}

// Lookup is the Target Matcher: it returns the display name of the first
// rule (in document order) whose condition holds for a process with the
// given name and full command line, or false if none match or the process
// is blacklisted. It is a pure function of (processName, command, snapshot).
func (s *Snapshot) Lookup(processName, command string) (string, bool) {
	for _, b := range s.Blacklist {
		if b.Condition.Evaluate(processName, command) {
			return "", false
		}
	}

	for i, r := range s.Rules {
		if s.indexedMatch(i, processName) || r.Condition.Evaluate(processName, command) {
			return r.DisplayName, true
		}
	}
	return "", false
}

// Store owns the currently active Snapshot and allows it to be swapped
// atomically on reload. The Store itself holds no other state.
type Store struct {
	snapshot atomic.Pointer[Snapshot]
}

// New loads the embedded default rules, optionally overlaid with documents
// from dir (each *.yaml/*.yml/*.json file in dir is parsed and its rules and
// blacklist entries appended after the embedded defaults). Loading is
// fail-fast: any schema error aborts startup.
func New(dir string) (*Store, error) {
	snap, err := loadSnapshot(dir)
	if err != nil {
		return nil, err
	}
	s := &Store{}
	s.snapshot.Store(snap)
	return s, nil
}

func loadSnapshot(dir string) (*Snapshot, error) {
	data, err := embeddedRules.ReadFile("rules/default_rules.yaml")
	if err != nil {
		return nil, fmt.Errorf("rulesstore: reading embedded rules: %w", err)
	}
	var doc documentSet
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rulesstore: parsing embedded rules: %w", err)
	}
	rules, blacklist, err := doc.toRules()
	if err != nil {
		return nil, err
	}

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("rulesstore: reading rules dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			extraRules, extraBlacklist, err := loadDocumentFile(path)
			if err != nil {
				return nil, err
			}
			rules = append(rules, extraRules...)
			blacklist = append(blacklist, extraBlacklist...)
		}
	}

	return NewSnapshot(rules, blacklist), nil
}

func loadDocumentFile(path string) (rules, blacklist []match.Rule, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("rulesstore: reading %s: %w", path, err)
	}
	var doc documentSet
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("rulesstore: parsing %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("rulesstore: parsing %s: %w", path, err)
		}
	default:
		return nil, nil, nil
	}
	return doc.toRules()
}

// Snapshot returns the currently active, immutable rule snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Reload re-reads the rules directory (if any was configured at New time is
// not retained here; callers pass dir again) and atomically swaps in a new
// snapshot. Existing monitored PIDs keep their prior match (spec §3
// invariant 3); only unseen PIDs are evaluated against the new snapshot.
func (s *Store) Reload(dir string) error {
	snap, err := loadSnapshot(dir)
	if err != nil {
		return err
	}
	s.snapshot.Store(snap)
	return nil
}
