package lowering

import "strings"

// likeToRegex converts a SQL LIKE pattern (% and _ wildcards, backslash
// escapes) into an anchored regular expression for $regexMatch. Every
// regex metacharacter in a literal run is escaped, so an unescaped %
// or _ is the only way to introduce wildcard behaviour — LIKE patterns
// round-trip through this conversion without surprise matches.
func likeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\\':
			if i+1 < len(runes) {
				i++
				b.WriteString(regexEscapeRune(runes[i]))
			} else {
				b.WriteString(`\\`)
			}
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexEscapeRune(r))
		}
	}
	b.WriteByte('$')
	return b.String()
}

var regexMeta = map[rune]bool{
	'.': true, '*': true, '+': true, '?': true, '(': true, ')': true,
	'[': true, ']': true, '{': true, '}': true, '^': true, '$': true,
	'|': true, '\\': true,
}

func regexEscapeRune(r rune) string {
	if regexMeta[r] {
		return "\\" + string(r)
	}
	return string(r)
}
