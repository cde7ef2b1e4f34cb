// Package learning holds the pure effectiveness math: confidence, relevance,
// ranking, and adaptive pacing. Persistence lives in services/learning
package learning

import (
	"sort"
	"time"

	"redpen/internal/core/ruleengine"
	"redpen/internal/core/rulepack"
)

// Outcome is developer feedback on one surfaced finding
type Outcome string

const (
	// OutcomeAccepted means the developer acted on the finding
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejected means the developer dismissed it as wrong
	OutcomeRejected Outcome = "rejected"
	// OutcomeIgnored means the finding saw no reaction
	OutcomeIgnored Outcome = "ignored"
)

// Valid reports whether o is a known outcome
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeRejected, OutcomeIgnored:
		return true
	default:
		return false
	}
}

// Record is one rule's accumulated feedback history. Counters only grow;
// Score is recomputed from the full counters on every update so replays
// land on the same value
type Record struct {
	RuleID      string
	Found       int64
	Accepted    int64
	Rejected    int64
	Ignored     int64
	Score       float64
	LastUpdated time.Time
}

// Filtering thresholds and confidence bounds
const (
	MinScore      = 0.3
	MinConfidence = 0.4
	MinRelevance  = 0.2

	confidenceFloor = 0.1
	confidenceCeil  = 0.95
	neutralPrior    = 0.5
)

// ComputeScore derives the effectiveness score from raw counters.
// The ignore-aware formula is canonical: clamp(accept − 0.5·reject − 0.2·ignore, 0, 1),
// all rates over Found. Zero history yields the neutral prior
func ComputeScore(found, accepted, rejected, ignored int64) float64 {
	if found <= 0 {
		return neutralPrior
	}
	f := float64(found)
	s := float64(accepted)/f - 0.5*float64(rejected)/f - 0.2*float64(ignored)/f
	return clamp(s, 0, 1)
}

// Confidence is the filtering trust level, distinct from the raw score:
// clamp(acceptRate − 0.5·rejectRate, 0.1, 0.95), neutral 0.5 with no history
func (r Record) Confidence() float64 {
	if r.Found <= 0 {
		return neutralPrior
	}
	f := float64(r.Found)
	c := float64(r.Accepted)/f - 0.5*float64(r.Rejected)/f
	return clamp(c, confidenceFloor, confidenceCeil)
}

// EffectivenessScore returns the stored score, or the neutral prior for a
// zero-value record
func (r Record) EffectivenessScore() float64 {
	if r.Found <= 0 && r.Score == 0 {
		return neutralPrior
	}
	return r.Score
}

// Apply increments the counter for outcome and recomputes Score
func (r Record) Apply(outcome Outcome, now time.Time) Record {
	switch outcome {
	case OutcomeAccepted:
		r.Accepted++
	case OutcomeRejected:
		r.Rejected++
	case OutcomeIgnored:
		r.Ignored++
	}
	r.Score = ComputeScore(r.Found, r.Accepted, r.Rejected, r.Ignored)
	r.LastUpdated = now
	return r
}

// AddFound bumps the found counter (aggregate analysis runs) and recomputes
func (r Record) AddFound(n int64, now time.Time) Record {
	r.Found += n
	r.Score = ComputeScore(r.Found, r.Accepted, r.Rejected, r.Ignored)
	r.LastUpdated = now
	return r
}

// SeverityWeight maps a severity bucket to its ranking weight
func SeverityWeight(s rulepack.Severity) float64 {
	switch s {
	case rulepack.SeverityError:
		return 1.0
	case rulepack.SeverityWarning:
		return 0.8
	case rulepack.SeverityInfo:
		return 0.6
	default:
		return 0.5
	}
}

// Relevance combines effectiveness, confidence, and severity into one rank key
func Relevance(score, confidence float64, sev rulepack.Severity) float64 {
	return score * confidence * SeverityWeight(sev)
}

// Ranked is a finding with its computed rank inputs attached
type Ranked struct {
	Finding    ruleengine.Finding
	Score      float64
	Confidence float64
	Relevance  float64
}

// Rank filters findings by the relevance gate and sorts survivors descending
// by relevance. The sort is stable so ties keep discovery order and output is
// deterministic for identical inputs and records
func Rank(findings []ruleengine.Finding, records map[string]Record) []Ranked {
	out := make([]Ranked, 0, len(findings))
	for _, f := range findings {
		rec := records[f.RuleID]
		if rec.RuleID == "" {
			rec.RuleID = f.RuleID
		}
		score := rec.EffectivenessScore()
		conf := rec.Confidence()
		rel := Relevance(score, conf, f.Severity)
		if score < MinScore || conf < MinConfidence || rel < MinRelevance {
			continue
		}
		out = append(out, Ranked{Finding: f, Score: score, Confidence: conf, Relevance: rel})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// PacingConfig bounds the adaptive inter-comment delay
type PacingConfig struct {
	Base time.Duration
	Min  time.Duration
	Max  time.Duration
}

// DefaultPacing is the production pacing window
var DefaultPacing = PacingConfig{
	Base: 2 * time.Second,
	Min:  500 * time.Millisecond,
	Max:  10 * time.Second,
}

// Pacing derives the delay before the next externally surfaced finding:
// clamp(base × (1.5 − score), min, max). Poor rules are paced slower
func Pacing(score float64, cfg PacingConfig) time.Duration {
	d := time.Duration(float64(cfg.Base) * (1.5 - score))
	if d < cfg.Min {
		return cfg.Min
	}
	if d > cfg.Max {
		return cfg.Max
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
