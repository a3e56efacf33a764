package verify

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// MarkdownLink is a link-like construct found in a markdown source file.
type MarkdownLink struct {
	Destination string
	IsImage     bool
}

// ExtractMarkdownLinks parses a markdown body and extracts link destinations.
// This is an analysis API; it does not attempt to re-render markdown.
func ExtractMarkdownLinks(body []byte) []MarkdownLink {
	md := goldmark.New()
	ctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(body), parser.WithContext(ctx))

	links := make([]MarkdownLink, 0)
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.AutoLink:
			links = append(links, MarkdownLink{Destination: string(node.URL(body))})
		case *gmast.Image:
			links = append(links, MarkdownLink{Destination: string(node.Destination), IsImage: true})
		case *gmast.Link:
			// Goldmark resolves reference-style links to a Link node with a Destination.
			links = append(links, MarkdownLink{Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})

	// Reference definitions live in the parse context, not the AST.
	for _, ref := range ctx.References() {
		links = append(links, MarkdownLink{Destination: string(ref.Destination())})
	}
	return links
}
