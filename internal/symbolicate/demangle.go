package symbolicate

import (
	"strconv"
	"strings"
)

// Rust legacy mangling: _ZN<len segment>...<len segment>E with $...$
// escapes inside segments and a trailing ::h<16 hex> disambiguator.
// Anything that does not parse cleanly comes back unchanged, so passing
// an already-demangled name through is a no-op.

var rustEscapes = map[string]string{
	"SP": "@",
	"BP": "*",
	"RF": "&",
	"LT": "<",
	"GT": ">",
	"LP": "(",
	"RP": ")",
	"C":  ",",
}

func DemangleRust(symbol string) string {
	inner, ok := stripRustPrefix(symbol)
	if !ok {
		return symbol
	}

	segments, ok := splitRustSegments(inner)
	if !ok || len(segments) == 0 {
		return symbol
	}
	if n := len(segments); isRustHashSegment(segments[n-1]) {
		segments = segments[:n-1]
	}
	if len(segments) == 0 {
		return symbol
	}

	for i, segment := range segments {
		segments[i] = unescapeRustSegment(segment)
	}
	return strings.Join(segments, "::")
}

func stripRustPrefix(symbol string) (string, bool) {
	for _, prefix := range []string{"_ZN", "__ZN", "ZN"} {
		if strings.HasPrefix(symbol, prefix) {
			return symbol[len(prefix):], true
		}
	}
	return "", false
}

// splitRustSegments reads <decimal length><bytes> groups until the E
// terminator. A vendor suffix after E (".llvm.1234") is tolerated.
func splitRustSegments(inner string) ([]string, bool) {
	var segments []string
	i := 0
	for {
		if i >= len(inner) {
			return nil, false
		}
		if inner[i] == 'E' {
			rest := inner[i+1:]
			if rest != "" && !strings.HasPrefix(rest, ".") {
				return nil, false
			}
			return segments, true
		}

		start := i
		for i < len(inner) && inner[i] >= '0' && inner[i] <= '9' {
			i++
		}
		if i == start {
			return nil, false
		}
		length, err := strconv.Atoi(inner[start:i])
		if err != nil || length <= 0 || i+length > len(inner) {
			return nil, false
		}
		segments = append(segments, inner[i:i+length])
		i += length
	}
}

func isRustHashSegment(segment string) bool {
	if len(segment) != 17 || segment[0] != 'h' {
		return false
	}
	for i := 1; i < len(segment); i++ {
		c := segment[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func unescapeRustSegment(segment string) string {
	// Segments may not start with $, so the mangler prefixes those
	// with an underscore that is not part of the name.
	if strings.HasPrefix(segment, "_$") {
		segment = segment[1:]
	}

	var b strings.Builder
	for i := 0; i < len(segment); {
		switch {
		case segment[i] == '$':
			end := strings.IndexByte(segment[i+1:], '$')
			if end < 0 {
				b.WriteByte('$')
				i++
				continue
			}
			token := segment[i+1 : i+1+end]
			if replacement, ok := rustEscapes[token]; ok {
				b.WriteString(replacement)
				i += end + 2
				continue
			}
			if strings.HasPrefix(token, "u") {
				if v, err := strconv.ParseUint(token[1:], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += end + 2
					continue
				}
			}
			b.WriteByte('$')
			i++
		case segment[i] == '.' && i+1 < len(segment) && segment[i+1] == '.':
			b.WriteString("::")
			i += 2
		default:
			b.WriteByte(segment[i])
			i++
		}
	}
	return b.String()
}
