package ruleengine

import (
	"strings"

	"redpen/internal/core/rulepack"
)

// Named special-case checks for rules with no pattern. This is a closed set,
// not a plugin mechanism: an unknown id produces nothing (the pack loader
// already skips ids it does not recognize)
const (
	maxParams   = 5
	maxNesting  = 4
	funcKeyword = "func|def|function|fn|public|private|protected|static|void"
)

// runHeuristic dispatches one empty-pattern rule
func (e *Engine) runHeuristic(f FileUnit, lines []string, r rulepack.Rule, testFile bool) []Finding {
	if testFile && r.TestExcluded() {
		return nil
	}
	switch r.ID {
	case "long-parameter-list":
		return e.checkParameterCount(f, lines, r)
	case "deep-nesting":
		return e.checkNestingDepth(f, lines, r)
	default:
		return nil
	}
}

// checkParameterCount flags declaration lines with more than maxParams
// comma-separated parameters in their first paren group
func (e *Engine) checkParameterCount(f FileUnit, lines []string, r rulepack.Rule) []Finding {
	var out []Finding
	for idx, line := range lines {
		ln := idx + 1
		if e.skipLine(f, ln, line) {
			continue
		}
		if !looksLikeDecl(line) {
			continue
		}
		n := paramCount(line)
		if n > maxParams {
			out = append(out, finding(r, f.Path, ln))
		}
	}
	return out
}

// checkNestingDepth flags lines that push brace depth past maxNesting
func (e *Engine) checkNestingDepth(f FileUnit, lines []string, r rulepack.Rule) []Finding {
	var out []Finding
	depth := 0
	for idx, line := range lines {
		ln := idx + 1
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		crossed := depth <= maxNesting && depth+opens > maxNesting
		depth += opens - closes
		if depth < 0 {
			depth = 0
		}
		if !crossed {
			continue
		}
		if e.skipLine(f, ln, line) {
			continue
		}
		out = append(out, finding(r, f.Path, ln))
	}
	return out
}

// skipLine applies the shared per-line filters (changed-lines scope, markers)
func (e *Engine) skipLine(f FileUnit, ln int, line string) bool {
	if e.opts.AnalyzeOnlyChanged {
		if _, ok := f.ChangedLines[ln]; !ok {
			return true
		}
	}
	return suppressed(line)
}

func finding(r rulepack.Rule, path string, line int) Finding {
	return Finding{
		RuleID:     r.ID,
		Path:       path,
		Line:       line,
		Severity:   r.Severity,
		Message:    r.Message,
		Suggestion: r.Suggestion,
	}
}

// looksLikeDecl is a cheap cross-language guess at a function declaration
func looksLikeDecl(line string) bool {
	l := strings.TrimSpace(strings.ToLower(line))
	open := strings.IndexByte(l, '(')
	if open < 0 {
		return false
	}
	head := l[:open]
	for kw := range strings.SplitSeq(funcKeyword, "|") {
		if strings.Contains(head, kw+" ") || strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

// paramCount counts top-level commas in the first paren group, +1 when the
// group is non-empty. Nested parens and generics are tolerated, not parsed
func paramCount(line string) int {
	open := strings.IndexByte(line, '(')
	if open < 0 {
		return 0
	}
	depth := 0
	commas := 0
	nonEmpty := false
	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(', '[', '<':
			depth++
		case ')', ']', '>':
			depth--
			if depth == 0 {
				if nonEmpty {
					return commas + 1
				}
				return 0
			}
		case ',':
			if depth == 1 {
				commas++
			}
		case ' ', '\t':
		default:
			if depth >= 1 {
				nonEmpty = true
			}
		}
	}
	if nonEmpty {
		return commas + 1
	}
	return 0
}
