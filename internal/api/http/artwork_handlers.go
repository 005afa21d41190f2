package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/AgentOS/artwork/internal/domain/artwork"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/media"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/providers/imagefetch"
	"github.com/GriffinCanCode/AgentOS/artwork/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ImagePayload is one candidate as sent by clients. Sizes uses the HTML
// sizes attribute syntax ("16x16 32x32").
type ImagePayload struct {
	Src   string `json:"src" binding:"required"`
	Type  string `json:"type"`
	Sizes string `json:"sizes"`
}

// ArtworkRequest asks for the best image among candidates
type ArtworkRequest struct {
	Images []ImagePayload `json:"images" binding:"dive"`
}

// PageRequest asks for the artwork of an HTML page
type PageRequest struct {
	URL string `json:"url" binding:"required"`
}

// PageResponse describes the artwork found on a page
type PageResponse struct {
	PageURL    string        `json:"page_url"`
	Title      string        `json:"title,omitempty"`
	Candidates []media.Image `json:"candidates"`
	Found      bool          `json:"found"`
	Image      string        `json:"image,omitempty"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	ETag       string        `json:"etag,omitempty"`
}

// ValidateImages rejects oversized or malformed candidate lists
func ValidateImages(payloads []ImagePayload) error {
	if err := utils.ValidateCandidateCount(len(payloads)); err != nil {
		return err
	}
	for i, p := range payloads {
		if err := utils.ValidateCandidate(p.Src, p.Type, p.Sizes); err != nil {
			return fmt.Errorf("images[%d]: %w", i, err)
		}
	}
	return nil
}

// ToImages converts payloads into correlator candidates
func ToImages(payloads []ImagePayload) []media.Image {
	images := make([]media.Image, len(payloads))
	for i, p := range payloads {
		images[i] = media.Image{
			Src:   p.Src,
			Type:  p.Type,
			Sizes: media.ParseSizes(p.Sizes),
		}
	}
	return images
}

// ResolveArtwork answers with the chosen image as PNG, or 204 when no
// candidate qualifies
func (h *Handlers) ResolveArtwork(c *gin.Context) {
	var req ArtworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := ValidateImages(req.Images); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	img, err := h.service.Resolve(ctx, ToImages(req.Images))
	if errors.Is(err, artwork.ErrNoArtwork) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	enc, err := artwork.Encode(img)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("ETag", enc.ETag)
	c.Header("Cache-Control", "private, max-age=300")
	if match := c.GetHeader("If-None-Match"); match != "" && match == enc.ETag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Header("X-Artwork-Width", strconv.Itoa(enc.Width))
	c.Header("X-Artwork-Height", strconv.Itoa(enc.Height))
	c.Data(http.StatusOK, "image/png", enc.PNG)
}

// ResolvePage scrapes a page and reports its candidates and chosen image
func (h *Handlers) ResolvePage(c *gin.Context) {
	var req PageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := utils.ValidateURL(req.URL, "url"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	page, err := h.service.ResolvePage(c.Request.Context(), req.URL)
	if err != nil && !errors.Is(err, artwork.ErrNoArtwork) {
		h.fail(c, err)
		return
	}

	resp := PageResponse{
		PageURL:    page.PageURL,
		Title:      page.Title,
		Candidates: page.Candidates,
	}
	if resp.Candidates == nil {
		resp.Candidates = []media.Image{}
	}
	if page.Image != nil {
		enc, err := artwork.Encode(page.Image)
		if err != nil {
			h.fail(c, err)
			return
		}
		resp.Found = true
		resp.Image = enc.DataURL()
		resp.Width = enc.Width
		resp.Height = enc.Height
		resp.ETag = enc.ETag
	}

	c.JSON(http.StatusOK, resp)
}

// fail maps service errors onto HTTP statuses
func (h *Handlers) fail(c *gin.Context, err error) {
	status := ErrorStatus(err)
	_ = c.Error(err)

	fields := append(tracing.Fields(c.Request.Context()),
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("artwork request failed", fields...)
	} else {
		h.logger.Debug("artwork request rejected", fields...)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// ErrorStatus returns the HTTP status for an artwork error
func ErrorStatus(err error) int {
	var statusErr *imagefetch.StatusError
	switch {
	case errors.Is(err, imagefetch.ErrHostNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, imagefetch.ErrUnsupportedScheme):
		return http.StatusBadRequest
	case errors.Is(err, imagefetch.ErrNotHTML):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests),
		errors.Is(err, artwork.ErrServiceClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		// client went away; nginx's convention
		return 499
	}
	return http.StatusBadGateway
}
