package overlay

import (
	"regexp"
	"strings"
	"unicode"
)

// markupPattern matches lightweight markup the catalog messages may carry.
var markupPattern = regexp.MustCompile("[*_~`#>\\[\\]]+")

// Normalize strips markup and emoji and collapses whitespace. Used both for
// the trigger dedup comparison and as the text handed to the speech service,
// which reads decorations out loud otherwise.
func Normalize(s string) string {
	s = markupPattern.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEmoji(r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F000: // emoji blocks, pictographs, flags
		return true
	case r == 0xFE0F || r == 0x200D: // variation selector, zero-width joiner
		return true
	case unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r):
		return true
	}
	return false
}
