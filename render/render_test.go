package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToHTML(t *testing.T) {
	out := string(ToHTML("# Answer\n\nUse **pprof** first."))
	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "Answer")
	assert.Contains(t, out, "<strong>pprof</strong>")
}

func TestToHTML_SanitizesScripts(t *testing.T) {
	out := string(ToHTML("hello <script>alert(1)</script> world"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "hello")
}

func TestToHTML_LinksOpenInNewTab(t *testing.T) {
	out := string(ToHTML("[go.dev](https://go.dev)"))
	assert.Contains(t, out, `href="https://go.dev"`)
	assert.Contains(t, out, `target="_blank"`)
}
