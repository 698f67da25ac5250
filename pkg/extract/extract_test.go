package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractString(t *testing.T, html string) string {
	t.Helper()
	got, err := NewHTML().Extract(strings.NewReader(html))
	require.NoError(t, err)
	return got
}

func TestExtractPrefersArticleBlock(t *testing.T) {
	html := `<html><body>
		<nav><a>Home</a></nav>
		<article><h1>Title</h1><p>Body text.</p></article>
		<footer><p>Copyright</p></footer>
	</body></html>`

	got := extractString(t, html)
	assert.Equal(t, "Title\nBody text.", got)
}

func TestExtractDropsScriptAndStyle(t *testing.T) {
	html := `<html><body>
		<p>visible</p>
		<script>var hidden = 1;</script>
		<style>p { color: red }</style>
	</body></html>`

	got := extractString(t, html)
	assert.Equal(t, "visible", got)
}

func TestExtractCollapsesWhitespace(t *testing.T) {
	html := "<html><body><p>  spaced \n\t out   text </p></body></html>"
	assert.Equal(t, "spaced out text", extractString(t, html))
}

func TestExtractFallsBackToBody(t *testing.T) {
	html := `<html><body><div>loose text without content markers</div></body></html>`
	assert.Equal(t, "loose text without content markers", extractString(t, html))
}

func TestExtractEmptyPage(t *testing.T) {
	assert.Equal(t, "", extractString(t, "<html><body></body></html>"))
}

func TestExtractNestedSpansNotDuplicated(t *testing.T) {
	html := `<html><body><article><p>outer <span>inner</span></p></article></body></html>`
	got := extractString(t, html)
	assert.Equal(t, "outer inner", got)
}
