package models

import (
	"time"

	"github.com/google/uuid"
)

// AssetScope controls who can see a knowledge asset.
type AssetScope string

const (
	ScopeGlobal   AssetScope = "GLOBAL"
	ScopeIndustry AssetScope = "INDUSTRY"
	ScopeTenant   AssetScope = "TENANT"
)

// GlobalTenantKey is the sentinel tenant id under which GLOBAL and
// INDUSTRY scoped assets are stored.
const GlobalTenantKey = "global"

// IngestionStatus tracks where an asset is in the ingestion pipeline.
// Valid transitions: PENDING->COMPLETED, PENDING->FAILED, and back to
// PENDING on restore/recovery of a soft-deleted or corrupted record.
type IngestionStatus string

const (
	IngestionPending   IngestionStatus = "PENDING"
	IngestionDuplicate IngestionStatus = "DUPLICATE"
	IngestionFailed    IngestionStatus = "FAILED"
	IngestionCompleted IngestionStatus = "COMPLETED"
)

// AssetStatus is the document-lifecycle status, independent of ingestion.
type AssetStatus string

const (
	AssetActive     AssetStatus = "ACTIVE"
	AssetSuperseded AssetStatus = "SUPERSEDED"
)

// KnowledgeAsset is the durable record of one logical document.
// Stored in knowledge_assets. Among rows where deleted_at is null,
// (content_hash, tenant_id, space_id, environment) is unique.
type KnowledgeAsset struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    string     `json:"tenant_id"` // tenant id, or "global" for shared scopes
	Scope       AssetScope `json:"scope"`
	SpaceID     *string    `json:"space_id,omitempty"`
	Environment string     `json:"environment"`

	ContentHash string `json:"content_hash"`
	SizeBytes   int64  `json:"size_bytes"`

	// BlobLocator points at the primary content-addressable store.
	// A PENDING or FAILED row without one is a corrupted leftover from an
	// interrupted attempt and is deleted on the next ingestion of the
	// same content.
	BlobLocator *string `json:"blob_locator,omitempty"`
	// StagingKey references the secondary staging store, populated only
	// when the secondary-store capability is enabled.
	StagingKey *string `json:"staging_key,omitempty"`

	IngestionStatus IngestionStatus `json:"ingestion_status"`
	Status          AssetStatus     `json:"status"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
	Error           *string         `json:"error,omitempty"`

	Filename       string  `json:"filename"`
	ComponentType  string  `json:"component_type"`
	DocumentTypeID *string `json:"document_type_id,omitempty"`
	Version        string  `json:"version"`
	Industry       string  `json:"industry"`
	CorrelationID  string  `json:"correlation_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TenantKey returns the tenant partition key for a scope: the tenant's own
// id for TENANT-scoped assets, the global sentinel otherwise.
func (s AssetScope) TenantKey(tenantID string) string {
	if s == ScopeTenant {
		return tenantID
	}
	return GlobalTenantKey
}

// ScopeKey is the dedup partition: two uploads with the same content hash
// and the same ScopeKey refer to the same logical asset.
type ScopeKey struct {
	TenantKey   string
	SpaceID     *string
	Environment string
}

// Fingerprint is the content identity of an uploaded file.
type Fingerprint struct {
	Hash      string `json:"hash"`
	SizeBytes int64  `json:"size_bytes"`
}
