package ws

import (
	"image"

	apihttp "github.com/GriffinCanCode/AgentOS/artwork/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
)

// Message types
const (
	TypeArtwork = "artwork"
	TypePage    = "page"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeSession = "session"
	TypeError   = "error"
)

// Message is a client frame
type Message struct {
	Type   string                 `json:"type"`
	Seq    int64                  `json:"seq"`
	Images []apihttp.ImagePayload `json:"images,omitempty"`
	URL    string                 `json:"url,omitempty"`
}

// Response is a server frame. Seq echoes the request that produced it.
type Response struct {
	Type       string        `json:"type"`
	Seq        int64         `json:"seq,omitempty"`
	Session    string        `json:"session,omitempty"`
	Found      bool          `json:"found"`
	Image      string        `json:"image,omitempty"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	ETag       string        `json:"etag,omitempty"`
	PageURL    string        `json:"page_url,omitempty"`
	Title      string        `json:"title,omitempty"`
	Candidates []media.Image `json:"candidates,omitempty"`
	Error      string        `json:"error,omitempty"`

	// img is encoded by the writer, off the session sequence
	img image.Image
}
