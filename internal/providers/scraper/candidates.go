package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/PuerkitoBio/goquery"
)

// Page is what the scraper learned from one document
type Page struct {
	Title  string
	Images []media.Image
}

// Extract parses an HTML document and returns its title and artwork
// candidates. Candidates are grouped by how deliberately the page declared
// them: Open Graph and Twitter card images, JSON-LD images, touch icons,
// icons, then inline <img> elements. Each group keeps document order and
// only the first occurrence of a URL is kept.
func Extract(data []byte, contentType, pageURL string) (*Page, error) {
	doc, err := LoadHTML(data, contentType)
	if err != nil {
		return nil, err
	}

	base, err := baseURL(doc, pageURL)
	if err != nil {
		return nil, err
	}

	c := &collector{base: base, seen: make(map[string]bool)}
	c.metaImages(doc)
	c.jsonLD(doc)
	c.linkIcons(doc, isTouchIcon)
	c.linkIcons(doc, isIcon)
	c.inlineImages(doc)

	return &Page{
		Title:  extractTitle(doc),
		Images: c.images,
	}, nil
}

// Candidates returns only the artwork candidates of a document
func Candidates(data []byte, contentType, pageURL string) ([]media.Image, error) {
	page, err := Extract(data, contentType, pageURL)
	if err != nil {
		return nil, err
	}
	return page.Images, nil
}

type collector struct {
	base   *url.URL
	seen   map[string]bool
	images []media.Image
}

// add records a candidate and returns its index, or -1 when src is
// unusable or already seen
func (c *collector) add(src, mimeType string, sizes []media.Size) int {
	resolved, ok := c.resolve(src)
	if !ok || c.seen[resolved] {
		return -1
	}
	c.seen[resolved] = true
	c.images = append(c.images, media.Image{Src: resolved, Type: mimeType, Sizes: sizes})
	return len(c.images) - 1
}

// resolve makes src absolute and keeps only http(s) URLs
func (c *collector) resolve(src string) (string, bool) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", false
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", false
	}
	abs := c.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

// metaImages handles og:image with its width/height/type properties and
// twitter:image
func (c *collector) metaImages(doc *goquery.Document) {
	current, width, height := -1, 0, 0
	flush := func() {
		if current >= 0 && width > 0 && height > 0 {
			c.images[current].Sizes = []media.Size{{Width: width, Height: height}}
		}
		current, width, height = -1, 0, 0
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := strings.ToLower(firstAttr(s, "property", "name"))
		content := s.AttrOr("content", "")

		switch key {
		case "og:image", "og:image:url", "og:image:secure_url":
			// :url and :secure_url restate the og:image they follow
			if key != "og:image" && current >= 0 {
				return
			}
			flush()
			current = c.add(content, "", nil)
		case "og:image:width":
			width = atoi(content)
		case "og:image:height":
			height = atoi(content)
		case "og:image:type":
			if current >= 0 {
				c.images[current].Type = strings.TrimSpace(content)
			}
		case "twitter:image", "twitter:image:src":
			flush()
			c.add(content, "", nil)
		}
	})
	flush()
}

func (c *collector) linkIcons(doc *goquery.Document, match func(rel string) bool) {
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		if !match(strings.ToLower(s.AttrOr("rel", ""))) {
			return
		}
		c.add(s.AttrOr("href", ""), s.AttrOr("type", ""), media.ParseSizes(s.AttrOr("sizes", "")))
	})
}

func (c *collector) inlineImages(doc *goquery.Document) {
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		var sizes []media.Size
		w, h := atoi(s.AttrOr("width", "")), atoi(s.AttrOr("height", ""))
		if w > 0 && h > 0 {
			sizes = []media.Size{{Width: w, Height: h}}
		}
		c.add(s.AttrOr("src", ""), "", sizes)
	})
}

func isTouchIcon(rel string) bool {
	for _, token := range strings.Fields(rel) {
		if token == "apple-touch-icon" || token == "apple-touch-icon-precomposed" {
			return true
		}
	}
	return false
}

func isIcon(rel string) bool {
	for _, token := range strings.Fields(rel) {
		if token == "icon" {
			return true
		}
	}
	return false
}

// baseURL honours <base href> relative to the page URL
func baseURL(doc *goquery.Document, pageURL string) (*url.URL, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(ref)
		}
	}
	return base, nil
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && v != "" {
			return v
		}
	}
	return ""
}

// atoi parses a dimension such as "640" or "640px"; bad input yields 0
func atoi(s string) int {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
