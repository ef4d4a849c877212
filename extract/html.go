package extract

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseHTML walks the parsed document tree, stripping script/style/nav
// chrome and collapsing whitespace, then truncates at a word boundary if
// the result exceeds opts.MaxContentLength.
func parseHTML(body []byte, opts Options) (*Document, error) {
	node, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &Document{}
	var textParts []string

	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header, atom.Noscript, atom.Iframe, atom.Svg:
				return
			case atom.Title:
				if doc.Title == "" {
					doc.Title = collectText(n)
				}
				return
			case atom.A:
				if opts.ExtractLinks {
					if href := attr(n, "href"); href != "" {
						doc.Links = append(doc.Links, href)
					}
				}
			case atom.Img:
				if opts.ExtractImages {
					if src := attr(n, "src"); src != "" {
						doc.Images = append(doc.Images, src)
					}
				}
			case atom.Meta:
				if opts.ExtractAuthorDate {
					applyMeta(doc, n)
				}
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				textParts = append(textParts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(node)

	doc.Text = collapseWhitespace(strings.Join(textParts, " "))
	if len(doc.Text) > opts.MaxContentLength {
		doc.Text = truncateAtWord(doc.Text, opts.MaxContentLength)
		doc.Truncated = true
	}
	return doc, nil
}

func collectText(n *html.Node) string {
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

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func applyMeta(doc *Document, n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	property := strings.ToLower(attr(n, "property"))
	content := attr(n, "content")
	if content == "" {
		return
	}
	switch {
	case name == "author" || property == "article:author":
		if doc.Author == "" {
			doc.Author = content
		}
	case property == "article:published_time" || name == "date":
		if doc.PublishedDate == nil {
			if t, err := time.Parse(time.RFC3339, content); err == nil {
				doc.PublishedDate = &t
			}
		}
	}
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func truncateAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}
