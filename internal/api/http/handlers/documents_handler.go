package handlers

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/verification-service/internal/api/dto"
	"github.com/spec-kit/verification-service/internal/auth"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/service"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// DocumentsHandler manages document and recording artifacts on a session.
// Uploads come from the requester side during the call, so they carry the
// session token rather than staff credentials.
type DocumentsHandler struct {
	documents *service.DocumentService
}

// NewDocumentsHandler constructs handler.
func NewDocumentsHandler(documents *service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{documents: documents}
}

// UploadDocument POST /public/sessions/:token/documents.
func (h *DocumentsHandler) UploadDocument(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", nil)
	}
	data, err := readMultipartFile(file)
	if err != nil {
		return apperrors.NewValidationError("unreadable file", nil)
	}

	doc, err := h.documents.UploadDocument(c.Context(), c.Params("token"), service.DocumentUploadInput{
		Kind:     c.FormValue("kind"),
		FileName: file.Filename,
		MimeType: file.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": documentResponse(doc, "")})
}

// ListDocuments GET /sessions/:token/documents.
func (h *DocumentsHandler) ListDocuments(c *fiber.Ctx) error {
	if err := requireStaff(c); err != nil {
		return err
	}
	docs, urls, err := h.documents.ListDocuments(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	items := make([]dto.DocumentResponse, 0, len(docs))
	for i := range docs {
		items = append(items, documentResponse(&docs[i], urls[docs[i].ID]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ReviewDocument PATCH /documents/:id/verification.
func (h *DocumentsHandler) ReviewDocument(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.ReviewDocumentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	doc, err := h.documents.ReviewDocument(c.Context(), c.Params("id"), service.VerificationInput{
		Verification: req.Verification,
		Notes:        req.Notes,
		Actor:        principal.Staff,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": documentResponse(doc, "")})
}

// CompareFaces POST /documents/:id/face-comparison.
func (h *DocumentsHandler) CompareFaces(c *fiber.Ctx) error {
	file, err := c.FormFile("live_image")
	if err != nil {
		return apperrors.NewValidationError("live_image required", nil)
	}
	data, err := readMultipartFile(file)
	if err != nil {
		return apperrors.NewValidationError("unreadable file", nil)
	}
	doc, err := h.documents.CompareFaces(c.Context(), c.Params("id"), data)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": documentResponse(doc, "")})
}

// UploadRecording POST /public/sessions/:token/recordings.
func (h *DocumentsHandler) UploadRecording(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file required", nil)
	}
	data, err := readMultipartFile(file)
	if err != nil {
		return apperrors.NewValidationError("unreadable file", nil)
	}
	var duration *int
	if raw := c.FormValue("duration_seconds"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			duration = &parsed
		}
	}

	rec, err := h.documents.UploadRecording(c.Context(), c.Params("token"), service.RecordingUploadInput{
		FileName:        file.Filename,
		MimeType:        file.Header.Get("Content-Type"),
		DurationSeconds: duration,
		Data:            data,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": recordingResponse(rec, "")})
}

// ListRecordings GET /sessions/:token/recordings.
func (h *DocumentsHandler) ListRecordings(c *fiber.Ctx) error {
	if err := requireStaff(c); err != nil {
		return err
	}
	recs, urls, err := h.documents.ListRecordings(c.Context(), c.Params("token"))
	if err != nil {
		return err
	}
	items := make([]dto.RecordingResponse, 0, len(recs))
	for i := range recs {
		items = append(items, recordingResponse(&recs[i], urls[recs[i].ID]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func requireStaff(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	return nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func documentResponse(doc *domain.Document, url string) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:              doc.ID,
		Kind:            doc.Kind,
		FileName:        doc.FileName,
		MimeType:        doc.MimeType,
		SizeBytes:       doc.SizeBytes,
		ExtractedFields: doc.ExtractedFields,
		SimilarityScore: doc.SimilarityScore,
		Verification:    doc.Verification,
		VerifiedByID:    doc.VerifiedByID,
		ReviewNotes:     doc.ReviewNotes,
		URL:             url,
		CreatedAt:       doc.CreatedAt,
	}
}

func recordingResponse(rec *domain.Recording, url string) dto.RecordingResponse {
	return dto.RecordingResponse{
		ID:              rec.ID,
		FileName:        rec.FileName,
		MimeType:        rec.MimeType,
		SizeBytes:       rec.SizeBytes,
		DurationSeconds: rec.DurationSeconds,
		URL:             url,
		CreatedAt:       rec.CreatedAt,
	}
}
