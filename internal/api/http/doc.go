// Package http exposes the artwork service over REST.
//
//	GET  /health            service and metrics snapshot
//	GET  /metrics           prometheus exposition
//	POST /v1/artwork        {"images":[{"src","type","sizes"}]} -> image/png or 204
//	POST /v1/artwork/page   {"url"} -> page candidates and chosen image
package http
