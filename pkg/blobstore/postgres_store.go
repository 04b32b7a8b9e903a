package blobstore

import (
	"fmt"
	"time"

	"context"

	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/apperrors"
	"github.com/veldt-ai/ingest-engine/pkg/database"
	"github.com/veldt-ai/ingest-engine/pkg/models"
)

// LocatorPrefix marks locators served by the content-addressable store.
const LocatorPrefix = "cas:"

type postgresBlobStore struct {
	logger *zap.Logger
}

// NewPostgresBlobStore creates a BlobStore backed by the blobs table.
func NewPostgresBlobStore(logger *zap.Logger) BlobStore {
	return &postgresBlobStore{logger: logger.Named("blobstore")}
}

var _ BlobStore = (*postgresBlobStore)(nil)

// GetOrCreateBlob inserts the payload keyed by its content hash. The
// insert is a no-op when the blob already exists; zero rows affected
// means the write was deduplicated.
func (s *postgresBlobStore) GetOrCreateBlob(ctx context.Context, upload models.FileUpload, contentHash string, op OpContext) (*Blob, bool, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, false, &apperrors.StorageError{Op: "write", Err: fmt.Errorf("no tenant scope in context")}
	}

	query := `
		INSERT INTO blobs (content_hash, size_bytes, mime_type, filename, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_hash) DO NOTHING`

	tag, err := scope.Conn.Exec(ctx, query,
		contentHash,
		upload.SizeBytes,
		upload.MimeType,
		upload.Filename,
		upload.Bytes,
		time.Now(),
	)
	if err != nil {
		return nil, false, &apperrors.StorageError{Op: "write", Err: err}
	}

	deduplicated := tag.RowsAffected() == 0
	if deduplicated {
		s.logger.Info("Blob write deduplicated",
			zap.String("content_hash", contentHash),
			zap.String("tenant_id", op.TenantID),
			zap.String("correlation_id", op.CorrelationID),
			zap.Int64("size_bytes", upload.SizeBytes))
	}

	return &Blob{
		ContentHash: contentHash,
		Locator:     LocatorPrefix + contentHash,
		SizeBytes:   upload.SizeBytes,
		MimeType:    upload.MimeType,
	}, deduplicated, nil
}
