package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/verification-service/internal/storage"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// FilesHandler serves stored artifacts behind signed URLs. Requests without a
// valid signature or past expiry get the same error, so probes learn nothing.
type FilesHandler struct {
	store *storage.LocalStore
}

// NewFilesHandler constructs handler.
func NewFilesHandler(store *storage.LocalStore) *FilesHandler {
	return &FilesHandler{store: store}
}

// Download GET /files/*.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	key := c.Params("*")
	exp, err := strconv.ParseInt(c.Query("exp"), 10, 64)
	if err != nil {
		return apperrors.NewForbidden("invalid or expired download link")
	}
	if !h.store.VerifySignature(key, exp, c.Query("sig"), time.Now()) {
		return apperrors.NewForbidden("invalid or expired download link")
	}

	data, contentType, err := h.store.Get(c.Context(), key)
	if err != nil {
		return apperrors.NewNotFound("file", nil)
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}
