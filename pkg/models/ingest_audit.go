package models

import (
	"time"

	"github.com/google/uuid"
)

// IngestAuditStatus is the outcome recorded for one ingestion attempt.
type IngestAuditStatus string

const (
	AuditPending   IngestAuditStatus = "PENDING"
	AuditDuplicate IngestAuditStatus = "DUPLICATE"
	AuditRestored  IngestAuditStatus = "RESTORED"
	AuditFailed    IngestAuditStatus = "FAILED"
)

// IngestAuditEntry is one append-only row per ingestion attempt.
// Stored in ingest_audit. Rows are never updated or deleted; every call
// to the coordinator produces exactly one entry, except for size-limit
// rejections which fail before an asset identity exists.
type IngestAuditEntry struct {
	ID            uuid.UUID         `json:"id"`
	TenantID      string            `json:"tenant_id"`
	PerformedBy   string            `json:"performed_by"`
	Filename      string            `json:"filename"`
	SizeBytes     int64             `json:"size_bytes"`
	ContentHash   string            `json:"content_hash"`
	AssetID       *uuid.UUID        `json:"asset_id,omitempty"`
	CorrelationID string            `json:"correlation_id"`
	Status        IngestAuditStatus `json:"status"`
	Details       map[string]any    `json:"details,omitempty"` // duration, dedup flag, staging key, source
	CreatedAt     time.Time         `json:"created_at"`
}
