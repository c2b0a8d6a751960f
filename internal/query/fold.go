package query

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// foldChains holds transformer chains; a chain is stateful and not safe for
// concurrent use.
var foldChains = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKD,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)), // accents
			runes.Remove(runes.In(unicode.Cf)), // zero-width
			width.Fold,
			norm.NFC,
		)
	},
}

// fold maps s to a case and accent insensitive form, so "Café" and "CAFE"
// compare equal. ASCII input takes the cheap path.
func fold(s string) string {
	if isASCII(s) {
		return strings.ToLower(s)
	}
	tr := foldChains.Get().(transform.Transformer)
	out, _, err := transform.String(tr, strings.ToValidUTF8(s, ""))
	tr.Reset()
	foldChains.Put(tr)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func containsFold(s, sub string) bool {
	return strings.Contains(fold(s), fold(sub))
}
