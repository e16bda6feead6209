package rulesstore

import (
	"fmt"

	"github.com/tracer-cloud/tracerd/internal/match"
)

// conditionDoc is the on-disk shape of a Condition, supporting both YAML and
// JSON via the same struct tags (mirrors the original Rust implementation's
// dual yaml/json rule parsers, which shared one Rule/Condition type).
type conditionDoc struct {
	Field string         `yaml:"field,omitempty" json:"field,omitempty"`
	Value string         `yaml:"value,omitempty" json:"value,omitempty"`
	And   []conditionDoc `yaml:"and,omitempty" json:"and,omitempty"`
	Or    []conditionDoc `yaml:"or,omitempty" json:"or,omitempty"`
}

func (c conditionDoc) toCondition() (match.Condition, error) {
	switch {
	case len(c.And) > 0:
		children := make([]match.Condition, 0, len(c.And))
		for _, child := range c.And {
			cc, err := child.toCondition()
			if err != nil {
				return match.Condition{}, err
			}
			children = append(children, cc)
		}
		return match.All(children...), nil
	case len(c.Or) > 0:
		children := make([]match.Condition, 0, len(c.Or))
		for _, child := range c.Or {
			cc, err := child.toCondition()
			if err != nil {
				return match.Condition{}, err
			}
			children = append(children, cc)
		}
		return match.Any(children...), nil
	case c.Field != "":
		switch c.Field {
		case "process_name_is":
			return match.NameIs(c.Value), nil
		case "process_name_contains":
			return match.NameContains(c.Value), nil
		case "command_contains":
			return match.CmdContains(c.Value), nil
		case "command_not_contains":
			return match.CmdNotContains(c.Value), nil
		default:
			return match.Condition{}, fmt.Errorf("rulesstore: unknown condition field %q", c.Field)
		}
	default:
		return match.Condition{}, fmt.Errorf("rulesstore: empty condition")
	}
}

// ruleDoc is the on-disk shape of a single rule.
type ruleDoc struct {
	DisplayName string       `yaml:"display_name" json:"display_name"`
	Condition   conditionDoc `yaml:"condition" json:"condition"`
}

func (r ruleDoc) toRule() (match.Rule, error) {
	cond, err := r.Condition.toCondition()
	if err != nil {
		return match.Rule{}, fmt.Errorf("rulesstore: rule %q: %w", r.DisplayName, err)
	}
	if r.DisplayName == "" {
		return match.Rule{}, fmt.Errorf("rulesstore: rule missing display_name")
	}
	return match.Rule{DisplayName: r.DisplayName, Condition: cond}, nil
}

// documentSet is the top-level shape of a rules document: a list of active
// rules plus an optional blacklist (SPEC_FULL.md §12.1).
type documentSet struct {
	Rules     []ruleDoc `yaml:"rules" json:"rules"`
	Blacklist []ruleDoc `yaml:"blacklist,omitempty" json:"blacklist,omitempty"`
}

func (d documentSet) toRules() (rules, blacklist []match.Rule, err error) {
	rules = make([]match.Rule, 0, len(d.Rules))
	for _, rd := range d.Rules {
		r, err := rd.toRule()
		if err != nil {
			return nil, nil, err
		}
		rules = append(rules, r)
	}
	blacklist = make([]match.Rule, 0, len(d.Blacklist))
	for _, rd := range d.Blacklist {
		r, err := rd.toRule()
		if err != nil {
			return nil, nil, err
		}
		blacklist = append(blacklist, r)
	}
	return rules, blacklist, nil
}
