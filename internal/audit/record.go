// Package audit persists one record per completed bulk deletion.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record summarises one bulk deletion. Records are append-only.
type Record struct {
	ID         string    `json:"id" yaml:"id"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	ItemCount  int       `json:"item_count" yaml:"item_count"`
	TotalBytes int64     `json:"total_bytes" yaml:"total_bytes"`
	Method     string    `json:"method" yaml:"method"`
}

// NewRecord stamps a record with a fresh ID and the current UTC time.
func NewRecord(count int, bytes int64, method string) Record {
	return Record{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		ItemCount:  count,
		TotalBytes: bytes,
		Method:     method,
	}
}

// Sink stores records and lists them newest first.
type Sink interface {
	Append(ctx context.Context, r Record) error
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown audit backend")

// Open returns the sink for backend, storing its data at path.
func Open(backend, path string) (Sink, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSONL:
		return NewJSONLSink(path), nil
	case BackendSQLite:
		return OpenDB(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
