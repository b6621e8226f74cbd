package handlers

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/storage"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// MediaHandler serves blob store content through signed URLs.
type MediaHandler struct {
	blobs storage.BlobStore
}

// NewMediaHandler constructs handler.
func NewMediaHandler(blobs storage.BlobStore) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// Download GET /media/:path. The path is escaped; expires and sig query
// parameters must match the signature issued with the URL.
func (h *MediaHandler) Download(c *fiber.Ctx) error {
	path, err := url.PathUnescape(c.Params("+"))
	if err != nil || path == "" {
		return apperrors.NewValidationError("invalid media path", nil)
	}
	expires, err := strconv.ParseInt(c.Query("expires"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid expires parameter", nil)
	}
	sig := c.Query("sig")
	if sig == "" {
		return apperrors.NewValidationError("missing signature", nil)
	}

	if err := h.blobs.VerifySignature(path, expires, sig); err != nil {
		return apperrors.NewForbidden("signature invalid or expired")
	}

	data, err := h.blobs.Get(path)
	if err != nil {
		return apperrors.NewNotFound("media", map[string]any{"path": path})
	}
	return c.Send(data)
}
