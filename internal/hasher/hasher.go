// Package hasher computes content digests of files.
package hasher

import (
	"crypto/sha1" //nolint:gosec // content identity, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/go-git/go-billy/v5"

	"github.com/schaermu/contentsync/internal/syncerr"
)

// BlockSize is the read size used while streaming a file into the digest.
const BlockSize = 64 * 1024

// Digest is the lowercase hex encoding of a file's content hash.
type Digest string

// Short returns the first 12 characters of the digest, for log lines.
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}

// Algorithm names a supported hash function.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
)

// Hasher computes digests with a fixed algorithm.
type Hasher struct {
	algo    Algorithm
	newHash func() hash.Hash
}

// New returns a Hasher for algo. An empty algo selects SHA256.
func New(algo Algorithm) (*Hasher, error) {
	switch algo {
	case "", SHA256:
		return &Hasher{algo: SHA256, newHash: sha256.New}, nil
	case SHA1:
		return &Hasher{algo: SHA1, newHash: sha1.New}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algo)
	}
}

// Algorithm returns the hash function in use.
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// Sum streams the file at path through the digest and returns it.
func (h *Hasher) Sum(fs billy.Basic, path string) (Digest, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", syncerr.Wrap("open", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	d, err := h.SumReader(f)
	if err != nil {
		return "", syncerr.Wrap("read", path, err)
	}
	return d, nil
}

// SumReader consumes r in BlockSize chunks and returns the digest.
func (h *Hasher) SumReader(r io.Reader) (Digest, error) {
	acc := h.newHash()
	buf := make([]byte, BlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return Digest(hex.EncodeToString(acc.Sum(nil))), nil
}
