// Package extract pulls visible text out of HTML documents.
package extract

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	symerrors "github.com/makkenzo/codename-symbiont/errors"
)

// Extractor turns an HTML document into plain text.
type Extractor interface {
	// Extract reads HTML from r and returns its visible text, one block
	// per line, with whitespace collapsed. An empty result is not an
	// error; pages with no text content yield "".
	Extract(r io.Reader) (string, error)
}

// contentSelectors are tried in order to locate the main content block
// before falling back to the whole body.
var contentSelectors = []string{
	"article",
	"main",
	"div[role='main']",
	"div.content",
	"div.post-content",
	"div.entry-content",
}

// textSelectors name the elements whose text is collected from the
// content block.
var textSelectors = "h1, h2, h3, h4, h5, h6, p, li, span"

// HTMLExtractor implements Extractor with goquery.
type HTMLExtractor struct{}

// NewHTML returns an HTML text extractor.
func NewHTML() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract parses the document, strips script/style/nav chrome, and collects
// text from headings, paragraphs, list items, and spans inside the main
// content block (or the body when no content block matches).
func (e *HTMLExtractor) Extract(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", symerrors.WrapInvalid(err, "extract", "Extract", "parse HTML")
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe").Remove()

	root := doc.Find("body")
	for _, sel := range contentSelectors {
		if block := doc.Find(sel); block.Length() > 0 {
			root = block.First()
			break
		}
	}

	var parts []string
	root.Find(textSelectors).Each(func(_ int, s *goquery.Selection) {
		// Keep only the outermost matched element, otherwise nested
		// spans duplicate their parents' text.
		if s.ParentsFiltered(textSelectors).Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		if text := collapse(root.Text()); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n"), nil
}

// collapse trims and squeezes all whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
