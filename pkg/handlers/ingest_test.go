package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/models"
)

type mockCoordinator struct {
	result *models.PrepareResult
	err    error
	calls  int
}

func (m *mockCoordinator) Prepare(_ context.Context, _ models.FileUpload, _ models.IngestMetadata, _ models.TenantContext) (*models.PrepareResult, error) {
	m.calls++
	return m.result, m.err
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func TestPrepare_MissingTenantHeader(t *testing.T) {
	coordinator := &mockCoordinator{}
	h := NewIngestHandler(coordinator, nil, zap.NewNop())

	body, contentType := multipartBody(t, "doc.pdf", "content")
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.Prepare(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, coordinator.calls)
}

func TestPrepare_MissingFilePart(t *testing.T) {
	coordinator := &mockCoordinator{}
	h := NewIngestHandler(coordinator, nil, zap.NewNop())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("component_type", "POLICY")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()

	h.Prepare(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, coordinator.calls)
}

func TestPrepare_NonMultipartRejected(t *testing.T) {
	coordinator := &mockCoordinator{}
	h := NewIngestHandler(coordinator, nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewBufferString(`{"not":"multipart"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-1")
	rec := httptest.NewRecorder()

	h.Prepare(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, coordinator.calls)
}
