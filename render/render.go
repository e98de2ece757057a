// Package render converts a synthesized markdown answer into sanitized
// HTML.
package render

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// ToHTML renders markdown to HTML and sanitizes the result for embedding in
// a page.
func ToHTML(md string) []byte {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	htmlFlags := html.CommonFlags | html.HrefTargetBlank
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	out := markdown.Render(doc, renderer)

	// UGCPolicy strips target, which HrefTargetBlank just added.
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("target").OnElements("a")
	return policy.SanitizeBytes(out)
}
