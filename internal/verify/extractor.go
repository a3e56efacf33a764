// Package verify checks generated documentation before it is published:
// internal links in the rendered HTML must resolve inside the output tree,
// and markdown sources get a cheap preflight for dangling relative links.
package verify

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// Link represents an extracted link from HTML content.
type Link struct {
	URL        string // the URL or path
	Text       string // link text or alt text
	Tag        string // HTML tag (a, img, script, link)
	Attribute  string // attribute containing the link (href, src)
	IsInternal bool   // true if the link stays inside the site
}

// ExtractLinks extracts all links from an HTML file.
func ExtractLinks(htmlPath string, baseURL string) ([]*Link, error) {
	file, err := os.Open(filepath.Clean(htmlPath))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()
	return ExtractLinksFromReader(file, baseURL)
}

// ExtractLinksFromReader extracts all links from an HTML reader.
func ExtractLinksFromReader(r io.Reader, baseURL string) ([]*Link, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	var links []*Link
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode {
			extractElementLinks(n, &links, base)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(doc)
	return links, nil
}

func extractElementLinks(n *html.Node, links *[]*Link, base *url.URL) {
	switch n.Data {
	case "a":
		if href := getAttr(n, "href"); href != "" {
			*links = append(*links, &Link{URL: href, Text: extractText(n), Tag: "a", Attribute: "href", IsInternal: isInternalLink(href, base)})
		}
	case "img":
		if src := getAttr(n, "src"); src != "" {
			*links = append(*links, &Link{URL: src, Text: getAttr(n, "alt"), Tag: "img", Attribute: "src", IsInternal: isInternalLink(src, base)})
		}
	case "script":
		if src := getAttr(n, "src"); src != "" {
			*links = append(*links, &Link{URL: src, Tag: "script", Attribute: "src", IsInternal: isInternalLink(src, base)})
		}
	case "link":
		if href := getAttr(n, "href"); href != "" {
			*links = append(*links, &Link{URL: href, Tag: "link", Attribute: "href", IsInternal: isInternalLink(href, base)})
		}
	}
}

func getAttr(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

// isInternalLink reports whether a link target stays inside the site.
func isInternalLink(raw string, base *url.URL) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "mailto" || u.Scheme == "tel" || u.Scheme == "javascript" {
		return false
	}
	if u.Host == "" {
		return true // relative or root-relative path
	}
	return base.Host != "" && u.Host == base.Host
}
