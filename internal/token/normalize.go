package token

import (
	"strings"
	"unicode"
)

// Normalize converts raw bytes into the canonical text form used for
// hashing and chunking: CRLF/CR become LF, trailing whitespace is
// stripped per line, and the whole document is trimmed.
func Normalize(raw []byte) string {
	text := string(raw)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// IsBinary reports whether text looks like binary content: any NUL byte,
// or more than 10% non-printable control characters.
func IsBinary(text string) bool {
	if text == "" {
		return false
	}
	if strings.ContainsRune(text, 0) {
		return true
	}
	control := 0
	total := 0
	for _, r := range text {
		total++
		if r == '\n' || r == '\t' {
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			control++
		}
	}
	return control*10 > total
}
