package models

import "github.com/google/uuid"

// FileUpload is the single concrete shape the core deals with. Boundary
// code (HTTP handler, batch importer) builds it once, whatever the
// transport delivered.
type FileUpload struct {
	Bytes     []byte
	Filename  string
	SizeBytes int64
	MimeType  string
}

// NewFileUpload builds a FileUpload from raw bytes, deriving the size.
func NewFileUpload(data []byte, filename, mimeType string) FileUpload {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return FileUpload{
		Bytes:     data,
		Filename:  filename,
		SizeBytes: int64(len(data)),
		MimeType:  mimeType,
	}
}

// IngestMetadata carries caller-supplied document metadata.
type IngestMetadata struct {
	ComponentType  string     `json:"component_type"`
	Version        string     `json:"version"`
	DocumentTypeID *string    `json:"document_type_id,omitempty"`
	Scope          AssetScope `json:"scope"`
	Industry       string     `json:"industry,omitempty"`
	SpaceID        *string    `json:"space_id,omitempty"`
}

// TenantContext identifies who is ingesting and where.
type TenantContext struct {
	TenantID      string `json:"tenant_id"`
	UserEmail     string `json:"user_email"`
	Environment   string `json:"environment"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// AdvisoryResult reports the outcome of a best-effort side operation,
// such as the secondary staging-store write. A failed advisory never
// aborts the primary operation.
type AdvisoryResult struct {
	Attempted bool   `json:"attempted"`
	Key       string `json:"key,omitempty"`
	Reason    string `json:"reason,omitempty"` // set when the attempt failed
}

// Failed reports whether the operation was attempted and did not succeed.
func (a AdvisoryResult) Failed() bool {
	return a.Attempted && a.Reason != ""
}

// PrepareResult is what the coordinator returns to the upload surface.
// Status is one of PENDING, DUPLICATE, FAILED; restores are reported as
// PENDING. Storage failures arrive here as Status FAILED plus Error, not
// as a returned error.
type PrepareResult struct {
	AssetID       uuid.UUID       `json:"asset_id"`
	Status        IngestionStatus `json:"status"`
	CorrelationID string          `json:"correlation_id"`
	IsDuplicate   bool            `json:"is_duplicate,omitempty"`
	BytesSaved    int64           `json:"bytes_saved"`
	Error         string          `json:"error,omitempty"`
	Staging       AdvisoryResult  `json:"staging"`
}
