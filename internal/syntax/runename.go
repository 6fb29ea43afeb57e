package syntax

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

const cjkPrefix = "CJK UNIFIED IDEOGRAPH-"

var (
	runesByNameOnce sync.Once
	runesByName     map[string]rune
)

// lookupRuneName resolves the NAME of a \N{NAME} escape. Names match
// case-insensitively.
func lookupRuneName(name string) (rune, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}

	if hex, ok := strings.CutPrefix(name, cjkPrefix); ok {
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || !unicode.Is(unicode.Unified_Ideograph, rune(v)) {
			return 0, false
		}
		return rune(v), true
	}

	runesByNameOnce.Do(func() {
		runesByName = make(map[string]rune, 40000)
		for r := rune(0); r <= unicode.MaxRune; r++ {
			n := runenames.Name(r)
			if n == "" || n[0] == '<' {
				continue
			}
			runesByName[n] = r
		}
	})
	r, ok := runesByName[name]
	return r, ok
}
