package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/verification-service/internal/domain"
)

// DocumentResponse metadata plus a time-limited download URL.
type DocumentResponse struct {
	ID              string                      `json:"id"`
	Kind            string                      `json:"kind"`
	FileName        string                      `json:"file_name"`
	MimeType        string                      `json:"mime_type"`
	SizeBytes       int64                       `json:"size_bytes"`
	ExtractedFields json.RawMessage             `json:"extracted_fields,omitempty"`
	SimilarityScore *float64                    `json:"similarity_score,omitempty"`
	Verification    domain.DocumentVerification `json:"verification"`
	VerifiedByID    *string                     `json:"verified_by_id,omitempty"`
	ReviewNotes     string                      `json:"review_notes,omitempty"`
	URL             string                      `json:"url,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
}

// ReviewDocumentRequest payload.
type ReviewDocumentRequest struct {
	Verification domain.DocumentVerification `json:"verification"`
	Notes        string                      `json:"notes,omitempty"`
}

// RecordingResponse metadata plus a time-limited download URL.
type RecordingResponse struct {
	ID              string    `json:"id"`
	FileName        string    `json:"file_name"`
	MimeType        string    `json:"mime_type"`
	SizeBytes       int64     `json:"size_bytes"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	URL             string    `json:"url,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
