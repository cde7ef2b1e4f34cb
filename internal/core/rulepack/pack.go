// Package rulepack loads and compiles review rules from the embedded rules.json.
// It prepares case-insensitive regex rules and named heuristics for the engine
package rulepack

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	str "redpen/internal/platform/strings"
)

//go:embed rules.json
var embedded []byte

// Severity buckets findings for weighting and display
type Severity string

const (
	// SeverityError is the highest severity bucket
	SeverityError Severity = "error"
	// SeverityWarning is the middle severity bucket
	SeverityWarning Severity = "warning"
	// SeverityInfo is the lowest severity bucket
	SeverityInfo Severity = "info"
)

// Known applicability tags (free-form strings in rules.json; these are the ones
// the engine acts on today)
const (
	// ApplyTestsExcluded marks a rule that must not fire on test files
	ApplyTestsExcluded = "tests-excluded"
	// ApplyMethods marks a rule scoped to method/function bodies
	ApplyMethods = "methods"
	// ApplyClasses marks a rule scoped to type declarations
	ApplyClasses = "classes"
)

type rawRule struct {
	ID            string   `json:"id"`
	Severity      string   `json:"severity"`
	Pattern       string   `json:"pattern"`
	Message       string   `json:"message"`
	Suggestion    string   `json:"suggestion,omitempty"`
	Applicability []string `json:"applicability,omitempty"`
	Examples      []string `json:"examples,omitempty"`
}

type rawPack struct {
	Version int            `json:"version"`
	Meta    map[string]any `json:"meta"`
	Rules   []rawRule      `json:"rules"`
}

// Rule is one compiled coding-standard check. Immutable once loaded
type Rule struct {
	ID            string
	Severity      Severity
	Pattern       string // empty for heuristic rules
	Message       string
	Suggestion    string
	Applicability map[string]struct{}
}

// TestExcluded reports whether the rule must be skipped on test files
func (r Rule) TestExcluded() bool {
	_, ok := r.Applicability[ApplyTestsExcluded]
	return ok
}

// Applies reports whether the rule carries the given applicability tag
func (r Rule) Applies(tag string) bool {
	_, ok := r.Applicability[tag]
	return ok
}

// Pack is an immutable compiled rule set. Readers never mutate it; refresh is
// a copy-and-swap in Cache
type Pack struct {
	Version int
	Meta    map[string]any

	// Pattern rules; Compiled is 1:1 with Rules
	Rules    []Rule
	Compiled []*regexp.Regexp

	// Heuristics are the empty-pattern rules handled by named checks
	// (parameter-count, nesting-depth)
	Heuristics []Rule

	// Skipped holds ids of rules whose pattern failed to compile.
	// Such rules are logged by the caller and excluded, never fatal
	Skipped []string

	byID map[string]Rule
}

// ByID returns the rule for id and whether it exists in this pack
func (p *Pack) ByID(id string) (Rule, bool) {
	r, ok := p.byID[id]
	return r, ok
}

// Len returns the total number of usable rules (patterns + heuristics)
func (p *Pack) Len() int { return len(p.Rules) + len(p.Heuristics) }

// Load returns the compiled pack from the embedded rules.json.
// REDPEN_RULES_PATH overrides the embedded pack with an on-disk file
func Load() (*Pack, error) {
	raw := embedded
	if path := strings.TrimSpace(os.Getenv("REDPEN_RULES_PATH")); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rulepack: read %s: %w", path, err)
		}
		raw = b
	}
	return Parse(raw)
}

// Parse compiles a rules.json payload into a Pack
func Parse(raw []byte) (*Pack, error) {
	var rp rawPack
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, fmt.Errorf("rulepack: parse rules.json: %w", err)
	}
	if rp.Version != 1 {
		return nil, fmt.Errorf("rulepack: unsupported rules.json version %d (want 1)", rp.Version)
	}

	p := &Pack{
		Version: rp.Version,
		Meta:    rp.Meta,
		byID:    make(map[string]Rule, len(rp.Rules)),
	}

	seen := make(map[string]struct{}, len(rp.Rules))
	for _, rr := range rp.Rules {
		id := strings.TrimSpace(rr.ID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("rulepack: duplicate rule id %q", id)
		}
		seen[id] = struct{}{}

		r := Rule{
			ID:       id,
			Severity: parseSeverity(rr.Severity),
			// width-fold so packs authored with fullwidth punctuation still compile
			Pattern:    str.Fold(strings.TrimSpace(rr.Pattern)),
			Message:    strings.TrimSpace(rr.Message),
			Suggestion: strings.TrimSpace(rr.Suggestion),
		}
		if len(rr.Applicability) > 0 {
			r.Applicability = make(map[string]struct{}, len(rr.Applicability))
			for _, a := range rr.Applicability {
				a = strings.ToLower(strings.TrimSpace(a))
				if a != "" {
					r.Applicability[a] = struct{}{}
				}
			}
		}

		if r.Pattern == "" {
			if !knownHeuristic(id) {
				// Unknown empty-pattern rule: nothing can evaluate it
				p.Skipped = append(p.Skipped, id)
				continue
			}
			p.Heuristics = append(p.Heuristics, r)
			p.byID[id] = r
			continue
		}

		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			// Configuration error: skip this rule, keep the rest
			p.Skipped = append(p.Skipped, id)
			continue
		}
		p.Rules = append(p.Rules, r)
		p.Compiled = append(p.Compiled, re)
		p.byID[id] = r
	}

	// Deterministic iteration for tests/debug. Compiled must follow Rules
	idx := make([]int, len(p.Rules))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return p.Rules[idx[a]].ID < p.Rules[idx[b]].ID })
	rules := make([]Rule, len(p.Rules))
	res := make([]*regexp.Regexp, len(p.Compiled))
	for to, from := range idx {
		rules[to] = p.Rules[from]
		res[to] = p.Compiled[from]
	}
	p.Rules, p.Compiled = rules, res
	sort.Slice(p.Heuristics, func(a, b int) bool { return p.Heuristics[a].ID < p.Heuristics[b].ID })
	sort.Strings(p.Skipped)

	return p, nil
}

func parseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	case "info":
		return SeverityInfo
	default:
		return SeverityInfo
	}
}

// knownHeuristic is the closed set of named special-case checks
func knownHeuristic(id string) bool {
	switch id {
	case "long-parameter-list", "deep-nesting":
		return true
	default:
		return false
	}
}
