package domain

import (
	"encoding/json"
	"time"
)

// DocumentVerification enumerates staff review outcomes for a document.
type DocumentVerification string

const (
	DocumentVerificationPending  DocumentVerification = "pending"
	DocumentVerificationVerified DocumentVerification = "verified"
	DocumentVerificationRejected DocumentVerification = "rejected"
)

// Document is metadata for an identity document captured during a session.
// ExtractedFields and SimilarityScore come back from external collaborators
// and are stored opaquely; the state machine never branches on them.
type Document struct {
	ID              string
	SessionID       string
	Kind            string
	StorageKey      string
	FileName        string
	MimeType        string
	SizeBytes       int64
	ExtractedFields json.RawMessage
	SimilarityScore *float64
	Verification    DocumentVerification
	VerifiedByID    *string
	ReviewNotes     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Recording is metadata for a call recording artifact.
type Recording struct {
	ID              string
	SessionID       string
	StorageKey      string
	FileName        string
	MimeType        string
	SizeBytes       int64
	DurationSeconds *int
	CreatedAt       time.Time
}
