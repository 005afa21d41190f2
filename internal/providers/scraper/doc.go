// Package scraper extracts artwork candidates from HTML pages.
//
// Sources, in priority order:
//   - meta: og:image (with og:image:width/height/type), twitter:image
//   - JSON-LD: image and thumbnailUrl of every entity, @graph included
//   - link: apple-touch-icon, then icon (sizes attribute)
//   - img: src with width/height attributes
//
// Relative URLs resolve against <base href> and the page URL; only http(s)
// candidates survive and the first occurrence of a URL wins.
//
// Built on specialized libraries:
//   - goquery: CSS selectors
//   - htmlquery: XPath for the title
//   - bluemonday: strips markup from the title
//   - chardet and x/net/html/charset: encoding detection and conversion
//   - sonic: JSON-LD decoding
//
// Example Usage:
//
//	page, err := scraper.Extract(body, resp.ContentType, pageURL)
//	for _, img := range page.Images { ... }
package scraper
