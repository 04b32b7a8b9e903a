package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/veldt-ai/ingest-engine/pkg/apperrors"
	"github.com/veldt-ai/ingest-engine/pkg/blobstore"
	"github.com/veldt-ai/ingest-engine/pkg/models"
)

// mockAssetRepository is an in-memory AssetRepository that enforces the
// same live-row uniqueness the partial index does, so insert races can be
// simulated with the beforeCreate hook.
type mockAssetRepository struct {
	assets map[uuid.UUID]*models.KnowledgeAsset

	findErr   error
	createErr error

	// beforeCreate runs before the uniqueness check inside Create,
	// letting a test land a concurrent row between resolve and insert.
	beforeCreate func(r *mockAssetRepository)

	createCalls  int
	restoreCalls int
	deleteCalls  int
}

func newMockAssetRepository() *mockAssetRepository {
	return &mockAssetRepository{assets: map[uuid.UUID]*models.KnowledgeAsset{}}
}

func sameSpace(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *mockAssetRepository) FindByFingerprint(_ context.Context, contentHash string, key models.ScopeKey) (*models.KnowledgeAsset, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}

	var deleted *models.KnowledgeAsset
	for _, a := range r.assets {
		if a.ContentHash != contentHash || a.TenantID != key.TenantKey ||
			a.Environment != key.Environment || !sameSpace(a.SpaceID, key.SpaceID) {
			continue
		}
		if a.DeletedAt == nil {
			return a, nil
		}
		deleted = a
	}
	if deleted != nil {
		return deleted, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *mockAssetRepository) GetByID(_ context.Context, id uuid.UUID) (*models.KnowledgeAsset, error) {
	a, ok := r.assets[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (r *mockAssetRepository) Create(_ context.Context, asset *models.KnowledgeAsset) error {
	r.createCalls++
	if r.createErr != nil {
		return r.createErr
	}
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook(r)
	}

	for _, a := range r.assets {
		if a.DeletedAt == nil && a.ContentHash == asset.ContentHash &&
			a.TenantID == asset.TenantID && a.Environment == asset.Environment &&
			sameSpace(a.SpaceID, asset.SpaceID) {
			return apperrors.ErrConflict
		}
	}

	if asset.ID == uuid.Nil {
		asset.ID = uuid.New()
	}
	r.assets[asset.ID] = asset
	return nil
}

func (r *mockAssetRepository) Restore(_ context.Context, id uuid.UUID, version string, documentTypeID *string, correlationID string) error {
	r.restoreCalls++
	a, ok := r.assets[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.DeletedAt = nil
	a.Status = models.AssetActive
	a.IngestionStatus = models.IngestionPending
	a.Version = version
	a.DocumentTypeID = documentTypeID
	a.CorrelationID = correlationID
	a.Error = nil
	return nil
}

func (r *mockAssetRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.deleteCalls++
	if _, ok := r.assets[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.assets, id)
	return nil
}

// mockAuditRepository records audit entries in order of creation.
type mockAuditRepository struct {
	entries   []*models.IngestAuditEntry
	createErr error
}

func (r *mockAuditRepository) Create(_ context.Context, entry *models.IngestAuditEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *mockAuditRepository) ListByTenant(_ context.Context, tenantID string, limit int) ([]*models.IngestAuditEntry, error) {
	var out []*models.IngestAuditEntry
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if r.entries[i].TenantID == tenantID {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *mockAuditRepository) ListByCorrelation(_ context.Context, correlationID string) ([]*models.IngestAuditEntry, error) {
	var out []*models.IngestAuditEntry
	for _, e := range r.entries {
		if e.CorrelationID == correlationID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *mockAuditRepository) CountByTenant(_ context.Context, tenantID string) (int64, error) {
	var n int64
	for _, e := range r.entries {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

// mockBlobStore is an in-memory content-addressable store.
type mockBlobStore struct {
	err    error
	stored map[string]bool
	calls  int
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{stored: map[string]bool{}}
}

func (s *mockBlobStore) GetOrCreateBlob(_ context.Context, upload models.FileUpload, contentHash string, _ blobstore.OpContext) (*blobstore.Blob, bool, error) {
	s.calls++
	if s.err != nil {
		return nil, false, s.err
	}
	deduplicated := s.stored[contentHash]
	s.stored[contentHash] = true
	return &blobstore.Blob{
		ContentHash: contentHash,
		Locator:     blobstore.LocatorPrefix + contentHash,
		SizeBytes:   upload.SizeBytes,
		MimeType:    upload.MimeType,
	}, deduplicated, nil
}

// mockStagingStore records staging writes.
type mockStagingStore struct {
	err  error
	keys []string
}

func (s *mockStagingStore) SaveForProcessing(_ context.Context, _ models.FileUpload, tenantID, correlationID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	key := "ingest:staging:" + tenantID + ":" + correlationID
	s.keys = append(s.keys, key)
	return key, nil
}
