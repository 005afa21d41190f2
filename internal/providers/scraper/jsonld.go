package scraper

import (
	"strings"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
)

// jsonLD adds the image and thumbnailUrl properties of every JSON-LD entity
func (c *collector) jsonLD(doc *goquery.Document) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data interface{}
		if err := sonic.UnmarshalString(strings.TrimSpace(s.Text()), &data); err != nil {
			return
		}
		c.walkEntity(data)
	})
}

func (c *collector) walkEntity(v interface{}) {
	switch node := v.(type) {
	case []interface{}:
		for _, item := range node {
			c.walkEntity(item)
		}
	case map[string]interface{}:
		if graph, ok := node["@graph"]; ok {
			c.walkEntity(graph)
		}
		c.addImageValue(node["image"])
		c.addImageValue(node["thumbnailUrl"])
	}
}

// addImageValue accepts a URL, an ImageObject or a list of either
func (c *collector) addImageValue(v interface{}) {
	switch img := v.(type) {
	case string:
		c.add(img, "", nil)
	case []interface{}:
		for _, item := range img {
			c.addImageValue(item)
		}
	case map[string]interface{}:
		src, _ := img["url"].(string)
		if src == "" {
			src, _ = img["contentUrl"].(string)
		}
		var sizes []media.Size
		if w, h := dimension(img["width"]), dimension(img["height"]); w > 0 && h > 0 {
			sizes = []media.Size{{Width: w, Height: h}}
		}
		mimeType, _ := img["encodingFormat"].(string)
		c.add(src, mimeType, sizes)
	}
}

// dimension reads 640, "640", "640px" or a QuantitativeValue
func dimension(v interface{}) int {
	switch d := v.(type) {
	case float64:
		if d > 0 {
			return int(d)
		}
	case string:
		return atoi(d)
	case map[string]interface{}:
		return dimension(d["value"])
	}
	return 0
}
