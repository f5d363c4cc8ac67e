package cells

import (
	"strings"
	"unicode"

	"github.com/roach88/noticeable/internal/ir"
)

type lineType int

const (
	lineEmpty lineType = iota
	lineIndented
	lineUnindented
)

func classify(line string) lineType {
	if strings.TrimSpace(line) == "" {
		return lineEmpty
	}
	r := []rune(line)[0]
	if unicode.IsSpace(r) {
		return lineIndented
	}
	return lineUnindented
}

// Split segments a document into cell fragments.
//
// A document with no non-blank lines yields an empty, non-nil slice.
func Split(text string) []ir.Fragment {
	frags := []ir.Fragment{}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		inCell bool
		cur    ir.Fragment
		code   strings.Builder
		indent lineType
	)

	flush := func() {
		cur.Code = code.String()
		frags = append(frags, cur)
		code.Reset()
		inCell = false
	}

	for i, line := range strings.Split(text, "\n") {
		lt := classify(line)

		if !inCell {
			if lt == lineEmpty {
				continue
			}
			inCell = true
			cur = ir.Fragment{FirstLineNum: i}
			code.WriteString(line)
			indent = lt
			continue
		}

		if lt == lineEmpty && indent == lineUnindented {
			flush()
			continue
		}
		if lt != lineEmpty {
			indent = lt
		}
		code.WriteByte('\n')
		code.WriteString(line)
	}

	if inCell {
		flush()
	}
	return frags
}

// StripIgnored blanks every line that starts with prefix.
// The lines themselves are kept so later line numbers do not shift.
func StripIgnored(text, prefix string) string {
	if prefix == "" || !strings.Contains(text, prefix) {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, prefix) {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}
