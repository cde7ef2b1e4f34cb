package strings

import (
	std "strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// foldPool hands out fresh transformer chains; a chain is stateful and
// must not be shared between goroutines
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(unicode.Cf)), // ZWJ ZWNJ FEFF etc
			width.Fold,                         // fullwidth forms to ASCII
		)
	},
}

// Fold repairs invalid UTF-8, applies NFKC, strips format runes, and folds
// fullwidth forms to ASCII. Deterministic for any input
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = std.ToValidUTF8(s, "")

	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// FoldPath folds p and normalizes separators so equal paths compare equal
// regardless of how the source encoded them
func FoldPath(p string) string {
	p = Fold(p)
	return std.ReplaceAll(p, "\\", "/")
}
