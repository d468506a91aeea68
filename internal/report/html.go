package report

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/net/html"
)

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	runSpaces  = regexp.MustCompile(`[ \t]+`)
)

// maxDepth bounds the tree walk on pathological documents.
const maxDepth = 64

// HTMLToMarkdown flattens the server-rendered report page into markdown
// that a terminal renderer can display. Scripts, styles and inline images
// are dropped; headings, paragraphs, lists and table rows survive.
func HTMLToMarkdown(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse report html")
	}
	var w mdWriter
	w.walk(root, 0)
	return tidy(w.String()), nil
}

type mdWriter struct {
	strings.Builder
}

func (w *mdWriter) walk(n *html.Node, depth int) {
	if depth > maxDepth {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(text)
			w.WriteString(" ")
		}
		return
	case html.ElementNode:
		if !w.open(n) {
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, depth+1)
	}

	if n.Type == html.ElementNode {
		w.close(n)
	}
}

// open writes the prefix for n and reports whether its children should be
// visited.
func (w *mdWriter) open(n *html.Node) bool {
	switch n.Data {
	case "script", "style", "noscript", "svg", "img", "iframe", "head":
		return false
	case "h1", "h2", "h3", "h4", "h5", "h6":
		w.WriteString("\n\n" + strings.Repeat("#", int(n.Data[1]-'0')) + " ")
	case "p", "div", "section", "table":
		w.WriteString("\n\n")
	case "br":
		w.WriteString("\n")
	case "li":
		w.WriteString("\n- ")
	case "tr":
		w.WriteString("\n|")
	case "th", "td":
		w.WriteString(" ")
	case "strong", "b":
		w.WriteString("**")
	case "em", "i":
		w.WriteString("*")
	}
	return true
}

func (w *mdWriter) close(n *html.Node) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6", "p", "table":
		w.WriteString("\n\n")
	case "th", "td":
		w.WriteString("|")
	case "strong", "b":
		w.WriteString("**")
	case "em", "i":
		w.WriteString("*")
	}
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = runSpaces.ReplaceAllString(line, " ")
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
