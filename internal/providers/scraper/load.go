package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize limits HTML input to 10MB to prevent memory exhaustion
const MaxHTMLSize = 10 * 1024 * 1024

// ValidateHTML checks HTML size and returns error if too large
func ValidateHTML(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("html content required")
	}
	if len(data) > MaxHTMLSize {
		return fmt.Errorf("html exceeds maximum size of %d bytes", MaxHTMLSize)
	}
	return nil
}

// DetectCharset names the encoding of data. A BOM, the Content-Type charset
// or a <meta charset> win; otherwise chardet guesses from the bytes.
func DetectCharset(data []byte, contentType string) string {
	// windows-1252 is also the fallback when nothing was declared
	if _, name, certain := charset.DetermineEncoding(data, contentType); certain || name != "windows-1252" || declaresCharset(data) {
		return name
	}

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "windows-1252"
	}
	return strings.ToLower(result.Charset)
}

// LoadHTML parses data as HTML, converting it to UTF-8 first
func LoadHTML(data []byte, contentType string) (*goquery.Document, error) {
	if err := ValidateHTML(data); err != nil {
		return nil, err
	}

	utf8Reader, err := charset.NewReaderLabel(DetectCharset(data, contentType), bytes.NewReader(data))
	if err != nil {
		// Unknown label: parse the raw bytes
		return goquery.NewDocumentFromReader(bytes.NewReader(data))
	}
	return goquery.NewDocumentFromReader(utf8Reader)
}

func declaresCharset(data []byte) bool {
	if len(data) > 1024 {
		data = data[:1024]
	}
	return bytes.Contains(bytes.ToLower(data), []byte("charset"))
}
