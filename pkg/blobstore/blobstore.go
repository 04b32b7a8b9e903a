// Package blobstore provides the content-addressable blob layer and the
// optional staging store for the downstream worker. Blobs are keyed by
// content hash and shared across tenants; writing the same bytes twice is
// a deduplicated no-op.
package blobstore

import (
	"context"

	"github.com/veldt-ai/ingest-engine/pkg/models"
)

// Blob is a stored binary, addressed by its content hash.
type Blob struct {
	ContentHash string `json:"content_hash"`
	Locator     string `json:"locator"`
	SizeBytes   int64  `json:"size_bytes"`
	MimeType    string `json:"mime_type"`
}

// OpContext carries caller identity for blob operations, used for logging
// and usage accounting.
type OpContext struct {
	TenantID      string
	UserID        string
	CorrelationID string
	Source        string
}

// BlobStore is the content-addressable store the coordinator persists
// uploads through. GetOrCreateBlob must be idempotent for identical byte
// content; the returned bool is true when the write was deduplicated
// against an existing blob.
type BlobStore interface {
	GetOrCreateBlob(ctx context.Context, upload models.FileUpload, contentHash string, op OpContext) (*Blob, bool, error)
}

// StagingStore is the secondary store used as a handoff area for the
// downstream worker. Writes are best-effort: the caller treats failures
// as advisory and continues in primary-store-only mode.
type StagingStore interface {
	SaveForProcessing(ctx context.Context, upload models.FileUpload, tenantID, correlationID string) (string, error)
}
