package recovery

import (
	"encoding/json"
	"strings"
)

// cleanup repairs formatting noise outside string literals: trailing commas
// before } or ], single-quoted keys and bare keys. String contents are copied
// untouched, and an unterminated string at the end is left as it is.
func cleanup(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)

		case c == ',':
			rest := strings.TrimLeft(s[i+1:], " \t\r\n")
			if strings.HasPrefix(rest, "}") || strings.HasPrefix(rest, "]") {
				continue
			}
			b.WriteByte(c)

		case c == '\'' && atKey(&b):
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 || !followedByColon(s[i+2+end:]) {
				b.WriteByte(c)
				continue
			}
			b.WriteString(quote(s[i+1 : i+1+end]))
			i += end + 1

		case isKeyStart(c) && atKey(&b):
			j := i
			for j < len(s) && isKeyPart(s[j]) {
				j++
			}
			key := strings.TrimRight(s[i:j], " ")
			if followedByColon(s[j:]) {
				b.WriteString(quote(key))
				b.WriteString(s[i+len(key) : j])
			} else {
				b.WriteString(s[i:j])
			}
			i = j - 1

		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// atKey reports whether the output so far ends where an object key may start.
func atKey(b *strings.Builder) bool {
	out := strings.TrimRight(b.String(), " \t\r\n")
	return strings.HasSuffix(out, "{") || strings.HasSuffix(out, ",")
}

func followedByColon(s string) bool {
	return strings.HasPrefix(strings.TrimLeft(s, " \t\r\n"), ":")
}

func isKeyStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKeyPart(c byte) bool {
	return isKeyStart(c) || (c >= '0' && c <= '9') || c == ' '
}

func quote(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

// endsInString reports whether s stops inside an unterminated string literal.
func endsInString(s string) bool {
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		}
	}
	return inString
}

// matchClose returns the index of the bracket closing the one at s[open],
// honouring string literals, or -1 when s ends first.
func matchClose(s string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stringEnd returns the index of the quote closing the string at s[start].
func stringEnd(s string, start int) int {
	escaped := false
	for i := start + 1; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == '"':
			return i
		}
	}
	return -1
}

func skipSpace(s string, i int) int {
	for i < len(s) && strings.IndexByte(" \t\r\n", s[i]) >= 0 {
		i++
	}
	return i
}

// splitBlocks walks the members of an object body (the text after its
// opening brace) and returns every complete `"key": {...}` member. Members
// whose value is not an object are skipped and counted as partial. The walk
// stops at the closing brace or at a member cut off by the end of input,
// which also counts as partial.
func splitBlocks(body string) (blocks []string, partial int) {
	i := 0
	for {
		for i < len(body) && (body[i] == ',' || strings.IndexByte(" \t\r\n", body[i]) >= 0) {
			i++
		}
		if i >= len(body) || body[i] == '}' {
			return blocks, partial
		}
		if body[i] != '"' {
			return blocks, partial + 1
		}

		keyEnd := stringEnd(body, i)
		if keyEnd < 0 {
			return blocks, partial + 1
		}
		j := skipSpace(body, keyEnd+1)
		if j >= len(body) || body[j] != ':' {
			return blocks, partial + 1
		}
		j = skipSpace(body, j+1)
		if j >= len(body) {
			return blocks, partial + 1
		}

		end := valueEnd(body, j)
		if end < 0 {
			return blocks, partial + 1
		}
		if body[j] == '{' {
			blocks = append(blocks, body[i:end+1])
		} else {
			partial++
		}
		i = end + 1
	}
}

// valueEnd returns the index of the last byte of the JSON value starting at
// s[start], or -1 when s ends first. A scalar ends before the next top-level
// comma or closing bracket.
func valueEnd(s string, start int) int {
	switch s[start] {
	case '{', '[':
		return matchClose(s, start)
	case '"':
		return stringEnd(s, start)
	}
	for i := start; i < len(s); i++ {
		if strings.IndexByte(",}]", s[i]) >= 0 {
			return i - 1
		}
	}
	return -1
}
