package acquire

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/julianbeese/mietcheck/internal/textparse"
)

// HTMLToText returns the visible text of an HTML document with one space
// between adjacent text nodes. Script, style and noscript content is dropped.
func HTMLToText(doc string) (string, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	return SelectionText(d.Selection), nil
}

// SelectionText flattens a selection to visible text
func SelectionText(sel *goquery.Selection) string {
	sel = sel.Clone()
	sel.Find("script, style, noscript, template").Remove()

	var b strings.Builder
	for _, n := range sel.Nodes {
		collectText(n, &b)
	}
	return textparse.NormalizeWhitespace(b.String())
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
