package storage

import (
	"context"
	"time"
)

// KV is the embedded key-value engine behind the token store.
//
// Implementations must be safe for concurrent use and durable across
// process restarts.
type KV interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if the key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// GetMany reads keys in one consistent view. Missing keys yield nil.
	GetMany(ctx context.Context, keys ...[]byte) ([][]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Update applies fn atomically: either every write lands or none does.
	Update(ctx context.Context, fn func(w Writer) error) error

	// GC reclaims space held by overwritten values.
	GC(ctx context.Context) (uint64, error)

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*KVStats, error)

	// Close releases the engine.
	Close() error
}

// Writer is the write side of an Update transaction.
type Writer interface {
	Set(key, value []byte) error
	Delete(key []byte) error
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// TotalSize is the total disk usage in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size.
	LSMSize uint64

	// ValueLogSize is the value log size.
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCRuns counts value log rewrites performed by GC.
	GCRuns uint64
}

// KVConfig configures the embedded engine.
type KVConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory. Used by tests and ephemeral agents.
	InMemory bool

	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the discard ratio that triggers a value log rewrite.
	// Default: 0.5
	GCThreshold float64

	// SyncWrites fsyncs after each write.
	// Default: true
	SyncWrites bool

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 16MB
	ValueLogFileSize int64
}

// DefaultKVConfig returns the default configuration for dir.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		SyncWrites:       true,
		CacheSize:        8 << 20,
		ValueLogFileSize: 16 << 20,
	}
}
