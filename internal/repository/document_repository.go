package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/verification-service/internal/domain"
)

// DocumentRepository persists identity document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListBySession(ctx context.Context, sessionID string) ([]domain.Document, error)
	SaveExtraction(ctx context.Context, doc *domain.Document) error
	SaveVerification(ctx context.Context, doc *domain.Document) error
}

// RecordingRepository persists call recording metadata.
type RecordingRepository interface {
	Create(ctx context.Context, rec *domain.Recording) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.Recording, error)
}

const documentColumns = `id, session_id, kind, storage_key, file_name, mime_type, size_bytes,
           extracted_fields, similarity_score, verification, verified_by_id, review_notes, created_at, updated_at`

type documentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository instantiates the repository.
func NewDocumentRepository(pool *pgxpool.Pool) DocumentRepository {
	return &documentRepository{pool: pool}
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	const query = `
        INSERT INTO kyc_documents (session_id, kind, storage_key, file_name, mime_type, size_bytes, verification)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		doc.SessionID,
		doc.Kind,
		doc.StorageKey,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.Verification,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := scanDocument(r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM kyc_documents WHERE id=$1`, id), &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM kyc_documents WHERE session_id=$1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Document
	for rows.Next() {
		var doc domain.Document
		if err := scanDocument(rows, &doc); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (r *documentRepository) SaveExtraction(ctx context.Context, doc *domain.Document) error {
	const query = `
        UPDATE kyc_documents
        SET extracted_fields=$1, similarity_score=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, doc.ExtractedFields, doc.SimilarityScore, doc.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *documentRepository) SaveVerification(ctx context.Context, doc *domain.Document) error {
	const query = `
        UPDATE kyc_documents
        SET verification=$1, verified_by_id=$2, review_notes=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query, doc.Verification, doc.VerifiedByID, doc.ReviewNotes, doc.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanDocument(row pgx.Row, doc *domain.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.SessionID,
		&doc.Kind,
		&doc.StorageKey,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.ExtractedFields,
		&doc.SimilarityScore,
		&doc.Verification,
		&doc.VerifiedByID,
		&doc.ReviewNotes,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
}

type recordingRepository struct {
	pool *pgxpool.Pool
}

// NewRecordingRepository instantiates the repository.
func NewRecordingRepository(pool *pgxpool.Pool) RecordingRepository {
	return &recordingRepository{pool: pool}
}

func (r *recordingRepository) Create(ctx context.Context, rec *domain.Recording) error {
	const query = `
        INSERT INTO video_recordings (session_id, storage_key, file_name, mime_type, size_bytes, duration_seconds)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		rec.SessionID,
		rec.StorageKey,
		rec.FileName,
		rec.MimeType,
		rec.SizeBytes,
		rec.DurationSeconds,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *recordingRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Recording, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT id, session_id, storage_key, file_name, mime_type, size_bytes, duration_seconds, created_at
        FROM video_recordings WHERE session_id=$1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Recording
	for rows.Next() {
		var rec domain.Recording
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.StorageKey,
			&rec.FileName,
			&rec.MimeType,
			&rec.SizeBytes,
			&rec.DurationSeconds,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}
