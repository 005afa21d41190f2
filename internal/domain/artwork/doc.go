// Package artwork resolves the artwork image for a set of candidates or a
// web page.
//
// Every resolution runs a media.Manager on its own sequence.Runner, with the
// image fetcher as its downloader. Resolve is one-shot and blocking.
// Sessions keep a manager alive across requests, so a client that sends a
// new request before the previous one finished only ever hears about the
// newest.
package artwork
