package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/apperrors"
	"github.com/veldt-ai/ingest-engine/pkg/blobstore"
	"github.com/veldt-ai/ingest-engine/pkg/config"
	"github.com/veldt-ai/ingest-engine/pkg/hashing"
	"github.com/veldt-ai/ingest-engine/pkg/models"
	"github.com/veldt-ai/ingest-engine/pkg/repositories"
	"github.com/veldt-ai/ingest-engine/pkg/retry"
	"github.com/veldt-ai/ingest-engine/pkg/tracing"
)

// ingestSource tags audit entries and blob operations from this surface.
const ingestSource = "INGEST_API"

// defaultEnvironment applies when the tenant context omits one.
const defaultEnvironment = "PRODUCTION"

// IngestionCoordinator runs the prepare phase of ingestion: validation,
// fingerprinting, dedup resolution, blob persistence and the registry and
// audit writes. It is the only component exposed to the upload surface.
//
// Prepare returns an error only for the pre-identity size rejection
// (*apperrors.ValidationError) and registry/infrastructure faults. Blob
// storage failures come back as a result with Status FAILED and the error
// message, backed by a queryable FAILED asset row.
type IngestionCoordinator interface {
	Prepare(ctx context.Context, upload models.FileUpload, meta models.IngestMetadata, tctx models.TenantContext) (*models.PrepareResult, error)
}

type ingestionCoordinator struct {
	assets   repositories.AssetRepository
	audits   repositories.IngestAuditRepository
	resolver DeduplicationResolver
	blobs    blobstore.BlobStore
	staging  blobstore.StagingStore // nil when the capability is disabled
	recorder *tracing.Recorder
	cfg      config.IngestConfig
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewIngestionCoordinator creates a new IngestionCoordinator. staging may
// be nil; the secondary-store path only runs when the capability flag is
// set and a staging store is wired.
func NewIngestionCoordinator(
	assets repositories.AssetRepository,
	audits repositories.IngestAuditRepository,
	resolver DeduplicationResolver,
	blobs blobstore.BlobStore,
	staging blobstore.StagingStore,
	recorder *tracing.Recorder,
	cfg config.IngestConfig,
	logger *zap.Logger,
) IngestionCoordinator {
	return &ingestionCoordinator{
		assets:   assets,
		audits:   audits,
		resolver: resolver,
		blobs:    blobs,
		staging:  staging,
		recorder: recorder,
		cfg:      cfg,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("ingest"),
	}
}

var _ IngestionCoordinator = (*ingestionCoordinator)(nil)

func (c *ingestionCoordinator) Prepare(ctx context.Context, upload models.FileUpload, meta models.IngestMetadata, tctx models.TenantContext) (*models.PrepareResult, error) {
	start := time.Now()

	correlationID := tctx.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	environment := tctx.Environment
	if environment == "" {
		environment = defaultEnvironment
	}
	if meta.Scope == "" {
		meta.Scope = models.ScopeTenant
	}
	if meta.Industry == "" {
		meta.Industry = c.cfg.DefaultIndustry
	}

	sc := tracing.SpanContext{
		CorrelationID: correlationID,
		TenantID:      tctx.TenantID,
		UserID:        tctx.UserEmail,
		FileName:      upload.Filename,
	}
	ctx, span := c.recorder.StartSpan(ctx, tracing.PhasePrepare, sc)

	// Hard ceiling. Fails before any asset or audit identity exists, so
	// this is the one path that surfaces an error instead of a result.
	if upload.SizeBytes > c.cfg.MaxFileBytes {
		err := apperrors.NewValidationError("file too large: max size is %d MiB, received %.2f MiB",
			c.cfg.MaxFileBytes/(1024*1024), float64(upload.SizeBytes)/1024/1024)
		c.recorder.EndSpanError(span, sc, err)
		return nil, err
	}

	if upload.SizeBytes > c.cfg.StreamingThresholdBytes {
		c.logger.Warn("Large file detected, streaming ingestion recommended",
			zap.String("filename", upload.Filename),
			zap.Int64("size_bytes", upload.SizeBytes),
			zap.Int64("threshold_bytes", c.cfg.StreamingThresholdBytes),
			zap.String("correlation_id", correlationID),
			zap.String("tenant_id", tctx.TenantID))
	}

	fp := hashing.Sum(upload.Bytes)
	sc.FileHash = fp.Hash

	staging := c.stageForProcessing(ctx, upload, tctx.TenantID, correlationID)

	key := models.ScopeKey{
		TenantKey:   meta.Scope.TenantKey(tctx.TenantID),
		SpaceID:     meta.SpaceID,
		Environment: environment,
	}

	res, err := c.resolver.Resolve(ctx, fp, key, meta, correlationID)
	if err != nil {
		c.recorder.EndSpanError(span, sc, err)
		return nil, err
	}

	var result *models.PrepareResult
	if res.Outcome == OutcomeCreate {
		result, err = c.createAsset(ctx, upload, meta, tctx, fp, key, correlationID, environment, staging, start)
		if err != nil {
			c.recorder.EndSpanError(span, sc, err)
			return nil, err
		}
	} else {
		result = c.finishExisting(ctx, res, upload, tctx, fp, correlationID, start)
	}

	result.Staging = staging
	c.recorder.EndSpanSuccess(span, sc,
		attribute.String("ingest.status", string(result.Status)),
		attribute.Bool("ingest.duplicate", result.IsDuplicate))
	return result, nil
}

// stageForProcessing performs the best-effort secondary-store write. The
// staging store is an optimization, not a dependency: a failure here is
// reported in the advisory result and ingestion continues.
func (c *ingestionCoordinator) stageForProcessing(ctx context.Context, upload models.FileUpload, tenantID, correlationID string) models.AdvisoryResult {
	if !c.cfg.SecondaryStoreEnabled || c.staging == nil {
		return models.AdvisoryResult{}
	}

	advisory := models.AdvisoryResult{Attempted: true}
	key, err := c.staging.SaveForProcessing(ctx, upload, tenantID, correlationID)
	if err != nil {
		advisory.Reason = err.Error()
		c.logger.Warn("Staging write failed, continuing in primary-store-only mode",
			zap.String("tenant_id", tenantID),
			zap.String("correlation_id", correlationID),
			zap.Error(err))
		return advisory
	}

	advisory.Key = key
	return advisory
}

// finishExisting turns a non-create resolution into a result and writes
// the matching audit entry.
func (c *ingestionCoordinator) finishExisting(ctx context.Context, res *Resolution, upload models.FileUpload, tctx models.TenantContext, fp models.Fingerprint, correlationID string, start time.Time) *models.PrepareResult {
	asset := res.Asset
	details := map[string]any{
		"source":      ingestSource,
		"duration_ms": time.Since(start).Milliseconds(),
	}

	switch res.Outcome {
	case OutcomeRestored:
		c.writeAudit(ctx, tctx, upload, fp, &asset.ID, correlationID, models.AuditRestored, details)
		return &models.PrepareResult{
			AssetID:       asset.ID,
			Status:        models.IngestionPending,
			CorrelationID: correlationID,
		}

	case OutcomeDuplicate:
		c.writeAudit(ctx, tctx, upload, fp, &asset.ID, correlationID, models.AuditDuplicate, details)
		return &models.PrepareResult{
			AssetID:       asset.ID,
			Status:        models.IngestionDuplicate,
			CorrelationID: correlationID,
			IsDuplicate:   true,
		}

	default: // OutcomeRecovered
		details["recovered"] = true
		c.writeAudit(ctx, tctx, upload, fp, &asset.ID, correlationID, models.AuditPending, details)
		return &models.PrepareResult{
			AssetID:       asset.ID,
			Status:        models.IngestionPending,
			CorrelationID: correlationID,
		}
	}
}

// createAsset persists the blob, inserts the PENDING asset row and writes
// the audit entry. Blob-store failures are converted into a FAILED asset
// plus FAILED audit so the fault itself is traceable and queryable; they
// are returned as a structured result, never as an error.
func (c *ingestionCoordinator) createAsset(ctx context.Context, upload models.FileUpload, meta models.IngestMetadata, tctx models.TenantContext, fp models.Fingerprint, key models.ScopeKey, correlationID, environment string, staging models.AdvisoryResult, start time.Time) (*models.PrepareResult, error) {
	opCtx := blobstore.OpContext{
		TenantID:      tctx.TenantID,
		UserID:        tctx.UserEmail,
		CorrelationID: correlationID,
		Source:        ingestSource,
	}

	var blob *blobstore.Blob
	var deduplicated bool
	err := retry.Do(ctx, c.retryCfg, func() error {
		b, dedup, berr := c.blobs.GetOrCreateBlob(ctx, upload, fp.Hash, opCtx)
		if berr != nil {
			return berr
		}
		blob, deduplicated = b, dedup
		return nil
	})
	if err != nil {
		return c.recordStorageFailure(ctx, upload, meta, tctx, fp, key, correlationID, environment, start, err), nil
	}

	asset := &models.KnowledgeAsset{
		TenantID:        key.TenantKey,
		Scope:           meta.Scope,
		SpaceID:         meta.SpaceID,
		Environment:     environment,
		ContentHash:     fp.Hash,
		SizeBytes:       fp.SizeBytes,
		BlobLocator:     &blob.Locator,
		IngestionStatus: models.IngestionPending,
		Status:          models.AssetActive,
		Filename:        upload.Filename,
		ComponentType:   meta.ComponentType,
		DocumentTypeID:  meta.DocumentTypeID,
		Version:         meta.Version,
		Industry:        meta.Industry,
		CorrelationID:   correlationID,
	}
	if staging.Key != "" {
		asset.StagingKey = &staging.Key
	}

	err = c.assets.Create(ctx, asset)
	if errors.Is(err, apperrors.ErrConflict) {
		// A concurrent identical upload won the insert race. The unique
		// index rejected ours; reinterpret as a duplicate discovered late
		// and resolve against the row the winner created.
		c.logger.Warn("Concurrent insert of identical content, re-resolving",
			zap.String("content_hash", fp.Hash),
			zap.String("tenant_key", key.TenantKey),
			zap.String("correlation_id", correlationID))

		res, rerr := c.resolver.Resolve(ctx, fp, key, meta, correlationID)
		if rerr != nil {
			return nil, rerr
		}
		if res.Outcome == OutcomeCreate {
			return nil, fmt.Errorf("insert conflict for content hash %s but no existing record found", fp.Hash)
		}
		return c.finishExisting(ctx, res, upload, tctx, fp, correlationID, start), nil
	}
	if err != nil {
		return nil, err
	}

	details := map[string]any{
		"source":       ingestSource,
		"scope":        string(meta.Scope),
		"duration_ms":  time.Since(start).Milliseconds(),
		"deduplicated": deduplicated,
		"backend":      blob.Locator,
	}
	if staging.Key != "" {
		details["staging_key"] = staging.Key
	}
	c.writeAudit(ctx, tctx, upload, fp, &asset.ID, correlationID, models.AuditPending, details)

	var bytesSaved int64
	if deduplicated {
		bytesSaved = fp.SizeBytes
	}

	return &models.PrepareResult{
		AssetID:       asset.ID,
		Status:        models.IngestionPending,
		CorrelationID: correlationID,
		BytesSaved:    bytesSaved,
	}, nil
}

func (c *ingestionCoordinator) recordStorageFailure(ctx context.Context, upload models.FileUpload, meta models.IngestMetadata, tctx models.TenantContext, fp models.Fingerprint, key models.ScopeKey, correlationID, environment string, start time.Time, storageErr error) *models.PrepareResult {
	msg := fmt.Sprintf("storage failed: %v", storageErr)

	c.logger.Error("Blob storage failed, recording FAILED asset",
		zap.String("content_hash", fp.Hash),
		zap.String("tenant_id", tctx.TenantID),
		zap.String("correlation_id", correlationID),
		zap.Error(storageErr))

	failed := &models.KnowledgeAsset{
		TenantID:        key.TenantKey,
		Scope:           meta.Scope,
		SpaceID:         meta.SpaceID,
		Environment:     environment,
		ContentHash:     fp.Hash,
		SizeBytes:       fp.SizeBytes,
		IngestionStatus: models.IngestionFailed,
		Status:          models.AssetActive,
		Error:           &msg,
		Filename:        upload.Filename,
		ComponentType:   meta.ComponentType,
		DocumentTypeID:  meta.DocumentTypeID,
		Version:         meta.Version,
		Industry:        meta.Industry,
		CorrelationID:   correlationID,
	}

	var assetID *uuid.UUID
	if err := c.assets.Create(ctx, failed); err != nil {
		c.logger.Error("Failed to record FAILED asset", zap.Error(err),
			zap.String("correlation_id", correlationID))
	} else {
		assetID = &failed.ID
	}

	c.writeAudit(ctx, tctx, upload, fp, assetID, correlationID, models.AuditFailed, map[string]any{
		"source":      ingestSource,
		"duration_ms": time.Since(start).Milliseconds(),
		"error":       msg,
	})

	return &models.PrepareResult{
		AssetID:       failed.ID,
		Status:        models.IngestionFailed,
		CorrelationID: correlationID,
		Error:         msg,
	}
}

// writeAudit appends the per-attempt audit entry. The trail is an
// observability surface; a failed insert is logged, not propagated.
func (c *ingestionCoordinator) writeAudit(ctx context.Context, tctx models.TenantContext, upload models.FileUpload, fp models.Fingerprint, assetID *uuid.UUID, correlationID string, status models.IngestAuditStatus, details map[string]any) {
	entry := &models.IngestAuditEntry{
		TenantID:      tctx.TenantID,
		PerformedBy:   tctx.UserEmail,
		Filename:      upload.Filename,
		SizeBytes:     fp.SizeBytes,
		ContentHash:   fp.Hash,
		AssetID:       assetID,
		CorrelationID: correlationID,
		Status:        status,
		Details:       details,
	}

	if err := c.audits.Create(ctx, entry); err != nil {
		c.logger.Error("Failed to write ingest audit entry",
			zap.String("correlation_id", correlationID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
