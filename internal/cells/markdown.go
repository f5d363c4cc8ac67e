package cells

import "strings"

// Markdown reports whether every line of code starts with the comment
// prefix and, if so, returns the markdown text: each line with the prefix
// and one following space removed.
func Markdown(code, prefix string) (string, bool) {
	if prefix == "" || code == "" {
		return "", false
	}
	lines := strings.Split(code, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, prefix) {
			return "", false
		}
		rest := line[len(prefix):]
		lines[i] = strings.TrimPrefix(rest, " ")
	}
	return strings.Join(lines, "\n"), true
}
