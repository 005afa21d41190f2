// Package imagefetch downloads and decodes images for media.Manager.
//
// A Fetcher is bound to the sequence that owns a Manager with On; the
// returned media.Downloader hands out request ids immediately, fetches in a
// goroutine and posts the completion back to that sequence. Decoding covers
// PNG, JPEG, GIF, WebP, BMP and ICO (PNG and DIB frames). Frames come back
// ordered closest to the ideal size first, scaled down to the maximum
// bitmap size, each paired with its original dimensions.
//
// FetchPage retrieves the HTML document whose candidates the scraper
// extracts.
package imagefetch
