package service

import (
	"context"
	"encoding/json"
)

// DocumentExtractor pulls structured fields out of an identity document image.
// Results are stored as opaque JSON; nothing downstream branches on them.
type DocumentExtractor interface {
	Extract(ctx context.Context, image []byte, mimeType string) (json.RawMessage, error)
}

// FaceComparer scores the similarity between a document portrait and a live
// capture. The score is advisory; the staff decision stays manual.
type FaceComparer interface {
	Compare(ctx context.Context, documentImage, liveImage []byte) (float64, error)
}

// NoopExtractor is the stand-in used when no extraction provider is wired.
type NoopExtractor struct{}

// Extract reports that extraction is not configured.
func (NoopExtractor) Extract(context.Context, []byte, string) (json.RawMessage, error) {
	return json.RawMessage(`{"extraction":"disabled"}`), nil
}

// NoopFaceComparer is the stand-in used when no comparison provider is wired.
type NoopFaceComparer struct{}

// Compare returns a neutral score.
func (NoopFaceComparer) Compare(context.Context, []byte, []byte) (float64, error) {
	return 0, nil
}
