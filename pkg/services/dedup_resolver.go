package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/apperrors"
	"github.com/veldt-ai/ingest-engine/pkg/models"
	"github.com/veldt-ai/ingest-engine/pkg/repositories"
)

// ResolutionOutcome is the dedup decision for an incoming fingerprint.
type ResolutionOutcome string

const (
	// OutcomeCreate means no usable record exists; the caller proceeds
	// with a fresh blob write and asset insert.
	OutcomeCreate ResolutionOutcome = "CREATE"
	// OutcomeRestored means a soft-deleted record was brought back to
	// PENDING with the new upload's metadata.
	OutcomeRestored ResolutionOutcome = "RESTORED"
	// OutcomeDuplicate means a COMPLETED record already holds this
	// content; nothing was mutated.
	OutcomeDuplicate ResolutionOutcome = "DUPLICATE"
	// OutcomeRecovered means an in-flight PENDING/FAILED record with an
	// intact storage pointer was found; the existing id is reused.
	OutcomeRecovered ResolutionOutcome = "RECOVERED"
)

// Resolution is the resolver's decision plus the record it applies to.
// Asset is nil when Outcome is OutcomeCreate.
type Resolution struct {
	Outcome ResolutionOutcome
	Asset   *models.KnowledgeAsset
}

// DeduplicationResolver decides what an incoming fingerprint means within
// a scope: brand new content, a restore of soft-deleted content, a
// duplicate, a recoverable in-flight record, or a corrupted leftover to
// clear out. It searches soft-deleted records too.
type DeduplicationResolver interface {
	Resolve(ctx context.Context, fp models.Fingerprint, key models.ScopeKey, meta models.IngestMetadata, correlationID string) (*Resolution, error)
}

type dedupResolver struct {
	assets repositories.AssetRepository
	logger *zap.Logger
}

// NewDeduplicationResolver creates a new DeduplicationResolver.
func NewDeduplicationResolver(assets repositories.AssetRepository, logger *zap.Logger) DeduplicationResolver {
	return &dedupResolver{
		assets: assets,
		logger: logger.Named("dedup"),
	}
}

var _ DeduplicationResolver = (*dedupResolver)(nil)

func (r *dedupResolver) Resolve(ctx context.Context, fp models.Fingerprint, key models.ScopeKey, meta models.IngestMetadata, correlationID string) (*Resolution, error) {
	existing, err := r.assets.FindByFingerprint(ctx, fp.Hash, key)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &Resolution{Outcome: OutcomeCreate}, nil
	}
	if err != nil {
		return nil, err
	}

	if existing.DeletedAt != nil {
		if err := r.assets.Restore(ctx, existing.ID, meta.Version, meta.DocumentTypeID, correlationID); err != nil {
			return nil, err
		}
		existing.DeletedAt = nil
		existing.Status = models.AssetActive
		existing.IngestionStatus = models.IngestionPending
		existing.Version = meta.Version
		existing.DocumentTypeID = meta.DocumentTypeID
		existing.CorrelationID = correlationID
		existing.Error = nil

		r.logger.Info("Restored soft-deleted asset",
			zap.String("asset_id", existing.ID.String()),
			zap.String("content_hash", fp.Hash),
			zap.String("correlation_id", correlationID))

		return &Resolution{Outcome: OutcomeRestored, Asset: existing}, nil
	}

	if existing.IngestionStatus == models.IngestionCompleted {
		return &Resolution{Outcome: OutcomeDuplicate, Asset: existing}, nil
	}

	// PENDING or FAILED from a prior attempt. A missing storage pointer
	// means that attempt died between the asset insert and the blob
	// confirmation; the row would block re-ingestion forever, and it
	// carries no externally-visible identity until COMPLETED, so it is
	// safe to delete and start clean.
	if existing.BlobLocator == nil || *existing.BlobLocator == "" {
		r.logger.Warn("Deleting corrupted asset record to allow fresh re-upload",
			zap.String("asset_id", existing.ID.String()),
			zap.String("content_hash", fp.Hash),
			zap.String("ingestion_status", string(existing.IngestionStatus)))

		if err := r.assets.Delete(ctx, existing.ID); err != nil {
			return nil, err
		}
		return &Resolution{Outcome: OutcomeCreate}, nil
	}

	r.logger.Info("Recovered in-flight asset record",
		zap.String("asset_id", existing.ID.String()),
		zap.String("content_hash", fp.Hash),
		zap.String("ingestion_status", string(existing.IngestionStatus)))

	return &Resolution{Outcome: OutcomeRecovered, Asset: existing}, nil
}
