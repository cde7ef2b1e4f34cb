package ruleengine

import "strings"

// suppressionMarkers are trailing annotations that mean "yes, on purpose".
// A line carrying one never produces a finding, regardless of rule
var suppressionMarkers = []string{
	"intentionally",
	"by design",
	"todo",
	"hack",
	"workaround",
}

// suppressed reports whether the line carries an intentional-suppression marker
func suppressed(line string) bool {
	l := strings.ToLower(line)
	for _, m := range suppressionMarkers {
		if strings.Contains(l, m) {
			return true
		}
	}
	return false
}

// testPathHints identify test files by path substring
var testPathHints = []string{
	"_test.",
	"_spec.",
	".test.",
	".spec.",
	"/test/",
	"/tests/",
	"/spec/",
}

// isTestPath applies the test-file path heuristic
func isTestPath(path string) bool {
	p := strings.ToLower(path)
	for _, h := range testPathHints {
		if strings.Contains(p, h) {
			return true
		}
	}
	base := p
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		base = p[i+1:]
	}
	return strings.HasPrefix(base, "test_") || strings.HasPrefix(base, "spec_")
}
