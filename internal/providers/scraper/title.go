package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const maxTitleLen = 200

var titlePolicy = bluemonday.StrictPolicy()

// extractTitle prefers <title>, then og:title, with markup stripped
func extractTitle(doc *goquery.Document) string {
	if len(doc.Nodes) == 0 {
		return ""
	}
	root := doc.Nodes[0]

	title := xpathText(root, "//head/title")
	if title == "" {
		title = xpathText(root, "//title")
	}
	if title == "" {
		if n := htmlquery.FindOne(root, `//meta[@property="og:title"]`); n != nil {
			title = htmlquery.SelectAttr(n, "content")
		}
	}

	return TruncateText(NormalizeWhitespace(html.UnescapeString(titlePolicy.Sanitize(title))), maxTitleLen)
}

func xpathText(root *html.Node, expr string) string {
	n, err := htmlquery.Query(root, expr)
	if err != nil || n == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(n))
}

// NormalizeWhitespace collapses multiple spaces into one
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateText truncates text to maxLen runes with an ellipsis
func TruncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
