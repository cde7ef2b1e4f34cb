// Package ruleengine evaluates a compiled rule pack against file content.
// Pattern rules run line by line; empty-pattern rules dispatch to the named
// heuristics in heuristics.go
package ruleengine

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"redpen/internal/core/rulepack"
	"redpen/internal/platform/logger"
)

// FileUnit is one file under analysis. Read-only during evaluation
type FileUnit struct {
	Path    string
	Content string

	// ChangedLines restricts matching to these 1-based lines when non-empty
	ChangedLines map[int]struct{}
}

// Finding is one concrete rule violation at a file/line
type Finding struct {
	RuleID     string
	Path       string
	Line       int // 1-based
	Severity   rulepack.Severity
	Message    string
	Suggestion string
}

// Options controls engine behavior
type Options struct {
	// AnalyzeOnlyChanged skips any file with an empty ChangedLines set
	// entirely (no full-file fallback) and restricts matching otherwise
	AnalyzeOnlyChanged bool

	// MaxConcurrent bounds in-flight (file x rule) evaluations across ALL
	// files sharing this engine; <=0 -> GOMAXPROCS
	MaxConcurrent int

	// MaxFindingsPerFile caps emitted findings per file (0 = no cap)
	MaxFindingsPerFile int
}

// Engine evaluates rule packs. One engine is shared by all concurrent file
// analyses so the (file x rule) limiter is global, not per file
type Engine struct {
	opts Options
	sem  chan struct{}
}

// New creates an Engine with the given options
func New(opts Options) *Engine {
	n := opts.MaxConcurrent
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return &Engine{opts: opts, sem: make(chan struct{}, n)}
}

// Evaluate scans one file against the pack and returns its findings.
// Output is deterministic for identical inputs: findings are assembled in
// rule order, then line order. A failing rule is logged and excluded; it
// never aborts the remaining rules
func (e *Engine) Evaluate(ctx context.Context, f FileUnit, p *rulepack.Pack) []Finding {
	if p == nil || f.Content == "" {
		return nil
	}
	if e.opts.AnalyzeOnlyChanged && len(f.ChangedLines) == 0 {
		// Deliberate policy: no line-by-line fallback for unchanged files
		return nil
	}

	lines := strings.Split(f.Content, "\n")
	testFile := isTestPath(f.Path)

	// One slot per rule keeps assembly order independent of goroutine timing
	nRules := len(p.Rules)
	slots := make([][]Finding, nRules+len(p.Heuristics))

	var wg sync.WaitGroup
	for i := range p.Rules {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case e.sem <- struct{}{}:
			wg.Add(1)
			go func(i int) {
				defer func() {
					if r := recover(); r != nil {
						logger.C(ctx).Warn().
							Str("rule", p.Rules[i].ID).
							Str("path", f.Path).
							Any("panic", r).
							Msg("rule evaluation panicked; rule excluded for this file")
					}
					<-e.sem
					wg.Done()
				}()
				slots[i] = e.scanRule(f, lines, p.Rules[i], p.Compiled[i], testFile)
			}(i)
		}
	}
	for i := range p.Heuristics {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case e.sem <- struct{}{}:
			wg.Add(1)
			go func(i int) {
				defer func() {
					if r := recover(); r != nil {
						logger.C(ctx).Warn().
							Str("rule", p.Heuristics[i].ID).
							Str("path", f.Path).
							Any("panic", r).
							Msg("heuristic evaluation panicked; rule excluded for this file")
					}
					<-e.sem
					wg.Done()
				}()
				slots[nRules+i] = e.runHeuristic(f, lines, p.Heuristics[i], testFile)
			}(i)
		}
	}
	wg.Wait()

	var out []Finding
	for _, s := range slots {
		out = append(out, s...)
		if e.opts.MaxFindingsPerFile > 0 && len(out) >= e.opts.MaxFindingsPerFile {
			out = out[:e.opts.MaxFindingsPerFile]
			break
		}
	}
	return out
}

// scanRule matches one pattern rule over the file's lines
func (e *Engine) scanRule(f FileUnit, lines []string, r rulepack.Rule, re matcher, testFile bool) []Finding {
	if testFile && r.TestExcluded() {
		return nil
	}

	var out []Finding
	for idx, line := range lines {
		ln := idx + 1
		if e.opts.AnalyzeOnlyChanged {
			if _, ok := f.ChangedLines[ln]; !ok {
				continue
			}
		}
		if suppressed(line) {
			continue
		}
		n := len(re.FindAllStringIndex(line, -1))
		for range n {
			out = append(out, Finding{
				RuleID:     r.ID,
				Path:       f.Path,
				Line:       ln,
				Severity:   r.Severity,
				Message:    r.Message,
				Suggestion: r.Suggestion,
			})
		}
	}
	return out
}

// matcher is the regexp surface scanRule needs (seam for tests)
type matcher interface {
	FindAllStringIndex(s string, n int) [][]int
}
