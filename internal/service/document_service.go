package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/repository"
	"github.com/spec-kit/verification-service/internal/storage"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

const maxUploadBytes = 25 << 20

// DocumentService manages document and recording artifacts attached to a
// session. Artifacts are accepted only while the session is open; staff
// review happens afterwards through verification updates.
type DocumentService struct {
	sessions   repository.SessionRepository
	documents  repository.DocumentRepository
	recordings repository.RecordingRepository
	store      storage.ObjectStore
	extractor  DocumentExtractor
	faces      FaceComparer
	cfg        config.StorageConfig
	logger     *zap.Logger
}

// DocumentDependencies bundles requirements.
type DocumentDependencies struct {
	SessionRepo   repository.SessionRepository
	DocumentRepo  repository.DocumentRepository
	RecordingRepo repository.RecordingRepository
	Store         storage.ObjectStore
	Extractor     DocumentExtractor
	FaceComparer  FaceComparer
	Logger        *zap.Logger
}

// NewDocumentService creates the service.
func NewDocumentService(cfg config.StorageConfig, deps DocumentDependencies) *DocumentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = NoopExtractor{}
	}
	faces := deps.FaceComparer
	if faces == nil {
		faces = NoopFaceComparer{}
	}
	return &DocumentService{
		sessions:   deps.SessionRepo,
		documents:  deps.DocumentRepo,
		recordings: deps.RecordingRepo,
		store:      deps.Store,
		extractor:  extractor,
		faces:      faces,
		cfg:        cfg,
		logger:     logger,
	}
}

// DocumentUploadInput carries an uploaded artifact.
type DocumentUploadInput struct {
	Kind     string
	FileName string
	MimeType string
	Data     []byte
}

// UploadDocument stores a document image captured during the call and kicks
// off field extraction in the background.
func (s *DocumentService) UploadDocument(ctx context.Context, token string, input DocumentUploadInput) (*domain.Document, error) {
	session, err := s.openSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if input.Kind == "" {
		return nil, apperrors.NewValidationError("document kind required", nil)
	}
	if len(input.Data) == 0 || len(input.Data) > maxUploadBytes {
		return nil, apperrors.NewValidationError("file empty or too large", map[string]any{"max_bytes": maxUploadBytes})
	}

	key, err := s.store.Put(ctx, "documents/"+session.Token, input.Data, input.MimeType)
	if err != nil {
		s.logger.Error("document store write failed", zap.String("token", token), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}

	doc := &domain.Document{
		SessionID:    session.ID,
		Kind:         input.Kind,
		StorageKey:   key,
		FileName:     input.FileName,
		MimeType:     input.MimeType,
		SizeBytes:    int64(len(input.Data)),
		Verification: domain.DocumentVerificationPending,
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, apperrors.MapError(err)
	}

	go s.extract(doc.ID, input.Data, input.MimeType)
	return doc, nil
}

// extract runs field extraction detached from the request.
func (s *DocumentService) extract(docID string, data []byte, mimeType string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fields, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		s.logger.Warn("document extraction failed", zap.String("document_id", docID), zap.Error(err))
		return
	}
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		return
	}
	doc.ExtractedFields = fields
	if err := s.documents.SaveExtraction(ctx, doc); err != nil {
		s.logger.Warn("extraction result not saved", zap.String("document_id", docID), zap.Error(err))
	}
}

// CompareFaces scores a document portrait against a live capture and stores
// the result on the document.
func (s *DocumentService) CompareFaces(ctx context.Context, docID string, liveImage []byte) (*domain.Document, error) {
	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	stored, _, err := s.store.Get(ctx, doc.StorageKey)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	score, err := s.faces.Compare(ctx, stored, liveImage)
	if err != nil {
		s.logger.Warn("face comparison failed", zap.String("document_id", docID), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	doc.SimilarityScore = &score
	if err := s.documents.SaveExtraction(ctx, doc); err != nil {
		return nil, apperrors.MapError(err)
	}
	return doc, nil
}

// ListDocuments returns a session's documents with fresh signed URLs.
func (s *DocumentService) ListDocuments(ctx context.Context, token string) ([]domain.Document, map[string]string, error) {
	session, err := s.anySession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.documents.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	urls := make(map[string]string, len(docs))
	for _, doc := range docs {
		if url, err := s.store.SignedURL(doc.StorageKey, s.cfg.SignedURLTTL()); err == nil {
			urls[doc.ID] = url
		}
	}
	return docs, urls, nil
}

// VerificationInput is a staff review decision on a document.
type VerificationInput struct {
	Verification domain.DocumentVerification
	Notes        string
	Actor        *domain.StaffMember
}

// ReviewDocument records the staff verdict.
func (s *DocumentService) ReviewDocument(ctx context.Context, docID string, input VerificationInput) (*domain.Document, error) {
	if input.Actor == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	switch input.Verification {
	case domain.DocumentVerificationVerified, domain.DocumentVerificationRejected:
	default:
		return nil, apperrors.NewValidationError("verification must be verified or rejected", nil)
	}

	doc, err := s.getDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	actorID := input.Actor.ID
	doc.Verification = input.Verification
	doc.VerifiedByID = &actorID
	doc.ReviewNotes = input.Notes
	if err := s.documents.SaveVerification(ctx, doc); err != nil {
		return nil, apperrors.MapError(err)
	}
	return doc, nil
}

// RecordingUploadInput carries a finished call recording.
type RecordingUploadInput struct {
	FileName        string
	MimeType        string
	DurationSeconds *int
	Data            []byte
}

// UploadRecording stores a call recording. Recordings arrive after the call
// ends, so any session state is accepted.
func (s *DocumentService) UploadRecording(ctx context.Context, token string, input RecordingUploadInput) (*domain.Recording, error) {
	session, err := s.anySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, apperrors.NewValidationError("file empty", nil)
	}

	key, err := s.store.Put(ctx, "recordings/"+session.Token, input.Data, input.MimeType)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	rec := &domain.Recording{
		SessionID:       session.ID,
		StorageKey:      key,
		FileName:        input.FileName,
		MimeType:        input.MimeType,
		SizeBytes:       int64(len(input.Data)),
		DurationSeconds: input.DurationSeconds,
	}
	if err := s.recordings.Create(ctx, rec); err != nil {
		return nil, apperrors.MapError(err)
	}
	return rec, nil
}

// ListRecordings returns a session's recordings with fresh signed URLs.
func (s *DocumentService) ListRecordings(ctx context.Context, token string) ([]domain.Recording, map[string]string, error) {
	session, err := s.anySession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	recs, err := s.recordings.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	urls := make(map[string]string, len(recs))
	for _, rec := range recs {
		if url, err := s.store.SignedURL(rec.StorageKey, s.cfg.SignedURLTTL()); err == nil {
			urls[rec.ID] = url
		}
	}
	return recs, urls, nil
}

func (s *DocumentService) openSession(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.anySession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, apperrors.NewClosed("session has expired or been closed")
	}
	return session, nil
}

func (s *DocumentService) anySession(ctx context.Context, token string) (*domain.Session, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("session", map[string]any{"token": token})
		}
		return nil, apperrors.MapError(err)
	}
	return session, nil
}

func (s *DocumentService) getDocument(ctx context.Context, docID string) (*domain.Document, error) {
	doc, err := s.documents.GetByID(ctx, docID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("document", map[string]any{"document_id": docID})
		}
		return nil, apperrors.MapError(err)
	}
	return doc, nil
}
