package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/apperrors"
	"github.com/veldt-ai/ingest-engine/pkg/database"
	"github.com/veldt-ai/ingest-engine/pkg/models"
	"github.com/veldt-ai/ingest-engine/pkg/services"
)

// maxMultipartMemory bounds the in-memory portion of multipart parsing;
// larger parts spill to temp files.
const maxMultipartMemory = 32 << 20

// IngestHandler is the thin boundary between the upload transport and the
// ingestion coordinator. It builds the single FileUpload shape once from
// whatever the request delivered and hands it to the core. Authentication
// runs upstream; the tenant id arrives on the X-Tenant-ID header.
type IngestHandler struct {
	coordinator services.IngestionCoordinator
	scopes      *database.TenantScopeProvider
	logger      *zap.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(coordinator services.IngestionCoordinator, scopes *database.TenantScopeProvider, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{
		coordinator: coordinator,
		scopes:      scopes,
		logger:      logger.Named("ingest_handler"),
	}
}

// RegisterRoutes registers the ingest handler's routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ingest", h.Prepare)
}

// Prepare handles POST /api/ingest multipart uploads.
func (h *IngestHandler) Prepare(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get("X-Tenant-ID")
	if tenantID == "" {
		http.Error(w, "missing X-Tenant-ID header", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read upload", zap.Error(err))
		http.Error(w, "failed to read upload", http.StatusInternalServerError)
		return
	}

	upload := models.NewFileUpload(data, header.Filename, header.Header.Get("Content-Type"))

	meta := models.IngestMetadata{
		ComponentType: r.FormValue("component_type"),
		Version:       r.FormValue("version"),
		Scope:         models.AssetScope(r.FormValue("scope")),
		Industry:      r.FormValue("industry"),
	}
	if v := r.FormValue("document_type_id"); v != "" {
		meta.DocumentTypeID = &v
	}
	if v := r.FormValue("space_id"); v != "" {
		meta.SpaceID = &v
	}

	tctx := models.TenantContext{
		TenantID:      tenantID,
		UserEmail:     r.Header.Get("X-User-Email"),
		Environment:   r.Header.Get("X-Environment"),
		CorrelationID: r.Header.Get("X-Correlation-ID"),
	}

	ctx, cleanup, err := h.scopes.WithTenantScope(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("Failed to acquire tenant scope", zap.Error(err),
			zap.String("tenant_id", tenantID))
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	defer cleanup()

	result, err := h.coordinator.Prepare(ctx, upload, meta, tctx)
	if err != nil {
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			http.Error(w, validationErr.Message, http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error("Ingestion prepare failed", zap.Error(err),
			zap.String("tenant_id", tenantID))
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("Failed to encode prepare result", zap.Error(err))
	}
}
