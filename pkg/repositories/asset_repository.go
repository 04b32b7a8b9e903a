package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/veldt-ai/ingest-engine/pkg/apperrors"
	"github.com/veldt-ai/ingest-engine/pkg/database"
	"github.com/veldt-ai/ingest-engine/pkg/models"
)

// AssetRepository provides data access for knowledge asset records.
type AssetRepository interface {
	// FindByFingerprint returns the asset matching the content hash and
	// scope key, including soft-deleted rows. When both a live and a
	// soft-deleted row match, the live one wins. Returns
	// apperrors.ErrNotFound if nothing matches.
	FindByFingerprint(ctx context.Context, contentHash string, key models.ScopeKey) (*models.KnowledgeAsset, error)

	// GetByID returns a single asset by id.
	GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeAsset, error)

	// Create inserts a new asset record. A concurrent insert of the same
	// fingerprint under the same scope key hits the partial unique index
	// and is reported as apperrors.ErrConflict.
	Create(ctx context.Context, asset *models.KnowledgeAsset) error

	// Restore clears the soft-delete marker, resets the ingestion status
	// to PENDING and updates the mutable metadata from the new upload.
	Restore(ctx context.Context, id uuid.UUID, version string, documentTypeID *string, correlationID string) error

	// Delete removes an asset row entirely. Only used for corrupted rows
	// left behind by interrupted ingestion attempts.
	Delete(ctx context.Context, id uuid.UUID) error
}

type assetRepository struct{}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository() AssetRepository {
	return &assetRepository{}
}

var _ AssetRepository = (*assetRepository)(nil)

const assetColumns = `
	id, tenant_id, scope, space_id, environment,
	content_hash, size_bytes, blob_locator, staging_key,
	ingestion_status, status, deleted_at, error,
	filename, component_type, document_type_id, version, industry,
	correlation_id, created_at, updated_at`

func (r *assetRepository) FindByFingerprint(ctx context.Context, contentHash string, key models.ScopeKey) (*models.KnowledgeAsset, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	// space_id is nullable; IS NOT DISTINCT FROM matches null against null.
	query := `
		SELECT ` + assetColumns + `
		FROM knowledge_assets
		WHERE content_hash = $1
		  AND tenant_id = $2
		  AND space_id IS NOT DISTINCT FROM $3
		  AND environment = $4
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1`

	row := scope.Conn.QueryRow(ctx, query, contentHash, key.TenantKey, key.SpaceID, key.Environment)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}

func (r *assetRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeAsset, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `SELECT ` + assetColumns + ` FROM knowledge_assets WHERE id = $1`

	row := scope.Conn.QueryRow(ctx, query, id)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}

func (r *assetRepository) Create(ctx context.Context, asset *models.KnowledgeAsset) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	query := `
		INSERT INTO knowledge_assets (` + assetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := scope.Conn.Exec(ctx, query,
		asset.ID,
		asset.TenantID,
		asset.Scope,
		asset.SpaceID,
		asset.Environment,
		asset.ContentHash,
		asset.SizeBytes,
		asset.BlobLocator,
		asset.StagingKey,
		asset.IngestionStatus,
		asset.Status,
		asset.DeletedAt,
		asset.Error,
		asset.Filename,
		asset.ComponentType,
		asset.DocumentTypeID,
		asset.Version,
		asset.Industry,
		asset.CorrelationID,
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create knowledge asset: %w", err)
	}

	return nil
}

func (r *assetRepository) Restore(ctx context.Context, id uuid.UUID, version string, documentTypeID *string, correlationID string) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	query := `
		UPDATE knowledge_assets
		SET deleted_at = NULL,
		    status = $2,
		    ingestion_status = $3,
		    version = $4,
		    document_type_id = $5,
		    correlation_id = $6,
		    error = NULL,
		    updated_at = $7
		WHERE id = $1`

	tag, err := scope.Conn.Exec(ctx, query,
		id,
		models.AssetActive,
		models.IngestionPending,
		version,
		documentTypeID,
		correlationID,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to restore knowledge asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, `DELETE FROM knowledge_assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete knowledge asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanAsset(row pgx.Row) (*models.KnowledgeAsset, error) {
	var asset models.KnowledgeAsset

	err := row.Scan(
		&asset.ID,
		&asset.TenantID,
		&asset.Scope,
		&asset.SpaceID,
		&asset.Environment,
		&asset.ContentHash,
		&asset.SizeBytes,
		&asset.BlobLocator,
		&asset.StagingKey,
		&asset.IngestionStatus,
		&asset.Status,
		&asset.DeletedAt,
		&asset.Error,
		&asset.Filename,
		&asset.ComponentType,
		&asset.DocumentTypeID,
		&asset.Version,
		&asset.Industry,
		&asset.CorrelationID,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan knowledge asset: %w", err)
	}

	return &asset, nil
}
