// Package markdown converts markdown-formatted resource files (translation
// words, translation academy articles, Open Bible Stories) into plain text
// suitable for BM25 indexing. This package has no HTML output surface:
// the engine's only consumer is the indexer, which wants normalized plain
// text, not sanitized markup.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Renderer converts markdown content to plain text.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a Renderer with GFM extensions enabled.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	return &Renderer{md: md}
}

// ToPlainText strips markdown formatting and returns plain text content
// suitable for search indexing and preview extraction.
func (r *Renderer) ToPlainText(src []byte) string {
	reader := text.NewReader(src)
	doc := r.md.Parser().Parse(reader)

	var buf bytes.Buffer

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(src))

			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.CodeSpan:
			for child := node.FirstChild(); child != nil; child = child.NextSibling() {
				if textNode, ok := child.(*ast.Text); ok {
					buf.Write(textNode.Segment.Value(src))
				}
			}

			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := range lines.Len() {
				line := lines.At(i)
				buf.Write(line.Value(src))
			}

			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
				buf.WriteByte('\n')
			}
		case *east.Table:
			if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
				buf.WriteByte('\n')
			}
		case *east.TableRow, *east.TableHeader:
			if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
				buf.WriteByte('\n')
			}
		case *east.TableCell:
			if node.PreviousSibling() != nil {
				buf.WriteByte('\t')
			}
		}

		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(buf.String())
}
