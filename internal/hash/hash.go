// Package hash fingerprints file contents for duplicate detection.
package hash

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"lukechampine.com/blake3"
)

// ChunkSize is the fixed read window used when streaming a file.
const ChunkSize = 1 << 20

// DefaultPrefixSize is the number of leading bytes used by Prefix in the
// duplicate pre-filter.
const DefaultPrefixSize = 64 << 10

// Digest is a BLAKE3-256 content fingerprint.
type Digest [32]byte

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// File streams path through BLAKE3 and returns the digest and the number of
// bytes read. Any open or read failure returns an error and a zero digest;
// a partial hash is never returned.
func File(path string) (Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	h := blake3.New(32, nil)
	n, err := io.CopyBuffer(h, onlyReader{f}, *bp)
	if err != nil {
		return Digest{}, 0, fmt.Errorf("read %s: %w", path, err)
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, n, nil
}

// Prefix returns the xxhash64 of the first n bytes of path. Files shorter
// than n are hashed in full.
func Prefix(path string, n int64) (uint64, error) {
	if n <= 0 {
		return 0, errors.New("prefix length must be positive")
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	bp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bp)

	h := xxhash.New()
	if _, err := io.CopyBuffer(h, io.LimitReader(f, n), *bp); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return h.Sum64(), nil
}

// onlyReader hides WriterTo/ReaderFrom so CopyBuffer really uses the pooled
// buffer instead of an internal one.
type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}
