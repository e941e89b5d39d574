package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdownBold(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("hello **world**")
	assert.Contains(t, out, "hello ")
	assert.Contains(t, out, "[::b]world[::-]")
}

func TestRenderMarkdownInlineCode(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("run `go test` now")
	assert.Contains(t, out, "[green]go test[-]")
}

func TestRenderMarkdownCodeBlock(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("```\nfirst\nsecond\n```")
	assert.Contains(t, out, "  first\n  second")
}

func TestRenderMarkdownHeading(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("# Title\n\nbody")
	assert.Contains(t, out, "[::b]Title[::-]")
	assert.Contains(t, out, "body")
}

func TestRenderMarkdownList(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("- one\n- two")
	assert.Contains(t, out, "• one")
	assert.Contains(t, out, "• two")
}

func TestRenderMarkdownLink(t *testing.T) {
	t.Parallel()

	out := RenderMarkdown("see [docs](https://example.com)")
	assert.Contains(t, out, "docs")
	assert.Contains(t, out, "https://example.com")
}

func TestRenderMarkdownPlainTextSurvives(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "just words", RenderMarkdown("just words"))
}
