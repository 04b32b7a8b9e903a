package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veldt-ai/ingest-engine/pkg/models"
)

type redisStagingStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStagingStore creates a StagingStore that parks raw payloads in
// Redis for the downstream worker. Entries expire after ttl; the worker
// falls back to the primary store when a staged copy is gone.
func NewRedisStagingStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) StagingStore {
	return &redisStagingStore{
		client: client,
		ttl:    ttl,
		logger: logger.Named("staging"),
	}
}

var _ StagingStore = (*redisStagingStore)(nil)

func (s *redisStagingStore) SaveForProcessing(ctx context.Context, upload models.FileUpload, tenantID, correlationID string) (string, error) {
	key := fmt.Sprintf("ingest:staging:%s:%s", tenantID, correlationID)

	if err := s.client.Set(ctx, key, upload.Bytes, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}

	s.logger.Info("Payload staged for processing",
		zap.String("key", key),
		zap.String("tenant_id", tenantID),
		zap.String("correlation_id", correlationID),
		zap.Int64("size_bytes", upload.SizeBytes))

	return key, nil
}
