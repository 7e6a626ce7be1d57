package pdfgen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildHTML_Headings(t *testing.T) {
	text := "John Doe\n\nSUMMARY\nExperienced developer.\n\nSkills:\n- Go\n- SQL"

	html := BuildHTML(text, "CV_Test")

	assert.Contains(t, html, "<title>CV_Test</title>")
	assert.Contains(t, html, "<h2>SUMMARY</h2>")
	assert.Contains(t, html, "<h3>Skills:</h3>")
	assert.Contains(t, html, "<p>Experienced developer.</p>")
	assert.Contains(t, html, `<div class="spacer"></div>`)
}

func TestBuildHTML_EscapesMarkup(t *testing.T) {
	html := BuildHTML("Worked on <secret> & co", "t")
	assert.Contains(t, html, "&lt;secret&gt; &amp; co")
	assert.NotContains(t, html, "<secret>")
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"EXPERIENCE", true},
		{"SKILLS & TOOLS", true},
		{"Experience", false},
		{"", false},
		{"---", false},
		{strings.Repeat("A", 60), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isHeading(tt.line), "line %q", tt.line)
	}
}

func TestIsSubheading(t *testing.T) {
	assert.True(t, isSubheading("Languages:"))
	assert.False(t, isSubheading("A plain sentence ends here."))
	assert.False(t, isSubheading(strings.Repeat("x", 60)+":"))
}
