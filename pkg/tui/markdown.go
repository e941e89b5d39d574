package tui

import (
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"github.com/rivo/tview"
)

// RenderMarkdown converts bot-message markdown into tview-tagged text:
// headings and strong in bold, emphasis in italics, code in color, lists as
// bullets, links as "text (url)". Unknown constructs fall back to their
// plain text.
func RenderMarkdown(source string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse([]byte(source))

	var b strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Heading:
			if entering {
				b.WriteString("[::b]")
			} else {
				b.WriteString("[::-]\n")
			}
		case *ast.Strong:
			if entering {
				b.WriteString("[::b]")
			} else {
				b.WriteString("[::-]")
			}
		case *ast.Emph:
			if entering {
				b.WriteString("[::i]")
			} else {
				b.WriteString("[::-]")
			}
		case *ast.Code:
			b.WriteString("[green]")
			b.WriteString(tview.Escape(string(n.Literal)))
			b.WriteString("[-]")
		case *ast.CodeBlock:
			b.WriteString("[green]")
			for _, line := range strings.Split(strings.TrimRight(string(n.Literal), "\n"), "\n") {
				b.WriteString("  ")
				b.WriteString(tview.Escape(line))
				b.WriteString("\n")
			}
			b.WriteString("[-]")
		case *ast.ListItem:
			if entering {
				b.WriteString("• ")
			}
		case *ast.Link:
			if !entering {
				b.WriteString(" [gray](")
				b.WriteString(tview.Escape(string(n.Destination)))
				b.WriteString(")[-]")
			}
		case *ast.Paragraph:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.Text:
			b.WriteString(tview.Escape(string(n.Literal)))
		}
		return ast.GoToNext
	})

	return strings.TrimRight(b.String(), "\n")
}
