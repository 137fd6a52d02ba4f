package export

import (
	"html"
	"strings"
)

// BodyToHTML converts a plain-text chapter body into HTML paragraphs.
// Blank lines separate paragraphs; single newlines become <br>.
func BodyToHTML(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	paragraphs := strings.Split(body, "\n\n")

	var b strings.Builder
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		lines := strings.Split(p, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>\n"))
		b.WriteString("</p>\n")
	}
	return b.String()
}
