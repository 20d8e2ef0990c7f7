package cache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a content fingerprint for path without hashing the
// entire file: it mixes the file size, modification time, and the first and
// last 64KiB into a BLAKE2b-256 digest. Spec.md §3 requires cache entries be
// "keyed by content fingerprint + processing parameters" — for multi-GB
// media files, hashing the full content on every lookup would dominate
// request latency, so this samples the extremes instead (a truncation or a
// re-encode in place changes size, mtime, or the boundary bytes).
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}

	fmt.Fprintf(h, "%d:%d:", info.Size(), info.ModTime().UnixNano())

	const sampleSize = 64 * 1024
	buf := make([]byte, sampleSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	h.Write(buf[:n])

	if info.Size() > sampleSize {
		if _, err := f.Seek(-sampleSize, io.SeekEnd); err == nil {
			n, err := io.ReadFull(f, buf)
			if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
				return "", err
			}
			h.Write(buf[:n])
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ParamsHash hashes a canonical string representation of processing
// parameters, used for artifact (non-metadata) cache entries which are
// additionally keyed on params (spec.md §3 CacheEntry.params_hash).
func ParamsHash(canonical string) string {
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
