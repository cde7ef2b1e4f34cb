// Package langhint classifies changed files by path so analysis can skip
// content that review rules cannot speak to (generated output, lockfiles,
// binary assets). Unknown extensions are treated as reviewable
package langhint

import (
	"strings"
)

// Hint carries a coarse language id and whether the file is worth reviewing
type Hint struct {
	Lang string // "", "go", "python", ...
	Code bool
}

// langByExt maps source extensions to a coarse language id
var langByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".rb":    "ruby",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".kt":    "kotlin",
	".cs":    "csharp",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
}

// skipExts are never reviewable: binaries, archives, media, lockfiles
var skipExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".ico": {}, ".svg": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {}, ".jar": {},
	".so": {}, ".dll": {}, ".exe": {}, ".bin": {}, ".wasm": {},
	".lock": {}, ".sum": {},
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

// skipSuffixes catch generated artifacts that keep a source extension
var skipSuffixes = []string{
	".min.js",
	".min.css",
	".pb.go",
	"_generated.go",
	".g.cs",
}

// ForPath classifies path. Never errors; worst case is an unlabeled
// reviewable hint
func ForPath(path string) Hint {
	p := strings.ToLower(strings.TrimSpace(path))
	if p == "" {
		return Hint{}
	}

	for _, suf := range skipSuffixes {
		if strings.HasSuffix(p, suf) {
			return Hint{Lang: langByExt[ext(p)]}
		}
	}

	e := ext(p)
	if _, skip := skipExts[e]; skip {
		return Hint{}
	}
	return Hint{Lang: langByExt[e], Code: true}
}

// Reviewable reports whether rules should run over the file at path
func Reviewable(path string) bool { return ForPath(path).Code }

func ext(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		// a trailing dot or dotfile like ".env" yields the whole tail, which
		// simply misses both maps and stays reviewable
		return p[i:]
	}
	return ""
}
