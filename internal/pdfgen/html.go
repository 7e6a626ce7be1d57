package pdfgen

import (
	"html"
	"strings"
	"unicode"
)

// maxHeadingLength is the longest line still treated as a section heading.
const maxHeadingLength = 50

// BuildHTML converts plain document text into a printable HTML page.
// Formatting heuristics match what the service has always produced:
// short ALL-CAPS lines become section headings, short lines ending in a
// colon become subheadings, blank lines become spacers.
func BuildHTML(text, title string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString("</title><style>")
	b.WriteString(documentCSS)
	b.WriteString("</style></head><body>")

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			b.WriteString(`<div class="spacer"></div>`)
		case isHeading(line):
			b.WriteString("<h2>" + html.EscapeString(line) + "</h2>")
		case isSubheading(line):
			b.WriteString("<h3>" + html.EscapeString(line) + "</h3>")
		default:
			b.WriteString("<p>" + html.EscapeString(line) + "</p>")
		}
	}

	b.WriteString("</body></html>")
	return b.String()
}

// isHeading reports whether a line is a short ALL-CAPS section header like
// "EXPERIENCE" or "SKILLS".
func isHeading(line string) bool {
	if len(line) >= maxHeadingLength {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// isSubheading reports whether a line is a short label ending in a colon.
func isSubheading(line string) bool {
	return len(line) < maxHeadingLength && strings.HasSuffix(line, ":")
}

const documentCSS = `
body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; line-height: 1.35; color: #111; }
h2 { font-size: 13pt; margin: 14px 0 4px; border-bottom: 1px solid #999; }
h3 { font-size: 11.5pt; margin: 10px 0 2px; }
p { margin: 3px 0; }
.spacer { height: 8px; }
`
