// Package tmpl substitutes $name and ${name} placeholders in manifest and
// query templates. "$$" is a literal dollar sign.
package tmpl

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\}|())`)

// MissingKeyError is a placeholder with no value
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("no value for placeholder %q", e.Key)
}

// Substitute replaces every placeholder in text with its value in vars.
// Unknown names and a "$" not followed by a name are errors.
func Substitute(text string, vars map[string]string) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(text[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0 || m[6] >= 0:
			key := group(text, m, 2)
			if key == "" {
				key = group(text, m, 3)
			}
			val, ok := vars[key]
			if !ok {
				return "", &MissingKeyError{Key: key}
			}
			b.WriteString(val)
		default:
			line, col := position(text, m[0])
			return "", fmt.Errorf("invalid placeholder at line %d, col %d", line, col)
		}
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

func group(text string, m []int, i int) string {
	if m[2*i] < 0 {
		return ""
	}
	return text[m[2*i]:m[2*i+1]]
}

func position(text string, offset int) (int, int) {
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return line, col
}
