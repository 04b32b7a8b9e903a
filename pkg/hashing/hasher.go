// Package hashing computes content fingerprints for uploaded files.
// The fingerprint is the asset's dedup identity: byte-identical files
// always produce the same hash, regardless of filename or tenant.
package hashing

import (
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/veldt-ai/ingest-engine/pkg/models"
)

// Sum computes the deterministic content fingerprint of raw file bytes.
// BLAKE3-256, hex encoded. Pure function, no error conditions.
func Sum(data []byte) models.Fingerprint {
	digest := blake3.Sum256(data)
	return models.Fingerprint{
		Hash:      hex.EncodeToString(digest[:]),
		SizeBytes: int64(len(data)),
	}
}
