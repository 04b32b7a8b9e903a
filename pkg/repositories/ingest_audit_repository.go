package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veldt-ai/ingest-engine/pkg/database"
	"github.com/veldt-ai/ingest-engine/pkg/models"
)

// IngestAuditRepository provides data access for the append-only ingestion
// audit trail. Entries are only ever inserted and read; there is no update
// or delete operation by design.
type IngestAuditRepository interface {
	// Create inserts a new audit entry.
	Create(ctx context.Context, entry *models.IngestAuditEntry) error

	// ListByTenant returns audit entries for a tenant, newest first.
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.IngestAuditEntry, error)

	// ListByCorrelation returns all entries sharing a correlation id.
	ListByCorrelation(ctx context.Context, correlationID string) ([]*models.IngestAuditEntry, error)

	// CountByTenant returns the number of audit entries for a tenant.
	CountByTenant(ctx context.Context, tenantID string) (int64, error)
}

type ingestAuditRepository struct{}

// NewIngestAuditRepository creates a new IngestAuditRepository.
func NewIngestAuditRepository() IngestAuditRepository {
	return &ingestAuditRepository{}
}

var _ IngestAuditRepository = (*ingestAuditRepository)(nil)

func (r *ingestAuditRepository) Create(ctx context.Context, entry *models.IngestAuditEntry) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()

	var detailsJSON []byte
	var err error
	if len(entry.Details) > 0 {
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO ingest_audit (
			id, tenant_id, performed_by, filename, size_bytes, content_hash,
			asset_id, correlation_id, status, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = scope.Conn.Exec(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.PerformedBy,
		entry.Filename,
		entry.SizeBytes,
		entry.ContentHash,
		entry.AssetID,
		entry.CorrelationID,
		entry.Status,
		detailsJSON,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create ingest audit entry: %w", err)
	}

	return nil
}

func (r *ingestAuditRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.IngestAuditEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, tenant_id, performed_by, filename, size_bytes, content_hash,
		       asset_id, correlation_id, status, details, created_at
		FROM ingest_audit
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := scope.Conn.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest audit: %w", err)
	}
	defer rows.Close()

	return collectAuditEntries(rows)
}

func (r *ingestAuditRepository) ListByCorrelation(ctx context.Context, correlationID string) ([]*models.IngestAuditEntry, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	query := `
		SELECT id, tenant_id, performed_by, filename, size_bytes, content_hash,
		       asset_id, correlation_id, status, details, created_at
		FROM ingest_audit
		WHERE correlation_id = $1
		ORDER BY created_at DESC`

	rows, err := scope.Conn.Query(ctx, query, correlationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest audit by correlation: %w", err)
	}
	defer rows.Close()

	return collectAuditEntries(rows)
}

func (r *ingestAuditRepository) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no tenant scope in context")
	}

	var count int64
	err := scope.Conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM ingest_audit WHERE tenant_id = $1`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ingest audit entries: %w", err)
	}

	return count, nil
}

func collectAuditEntries(rows pgx.Rows) ([]*models.IngestAuditEntry, error) {
	var entries []*models.IngestAuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingest audit entries: %w", err)
	}

	return entries, nil
}

func scanAuditEntry(row pgx.Row) (*models.IngestAuditEntry, error) {
	var entry models.IngestAuditEntry
	var detailsJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.TenantID,
		&entry.PerformedBy,
		&entry.Filename,
		&entry.SizeBytes,
		&entry.ContentHash,
		&entry.AssetID,
		&entry.CorrelationID,
		&entry.Status,
		&detailsJSON,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan ingest audit entry: %w", err)
	}

	if len(detailsJSON) > 0 && string(detailsJSON) != "null" {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
		}
	}

	return &entry, nil
}
