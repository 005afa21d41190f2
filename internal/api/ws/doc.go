// Package ws serves artwork sessions over WebSocket.
//
// Every connection opens one session. Clients send
//
//	{"type":"artwork","seq":1,"images":[{"src":"...","sizes":"512x512"}]}
//	{"type":"page","seq":2,"url":"https://..."}
//	{"type":"ping","seq":3}
//
// and receive frames whose seq names the request they answer. A request
// superseded by a newer one on the same connection is never answered.
package ws
