package event

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 digest of file content. The zero value
// means "no fingerprint" (content was not readable when the event was
// observed).
type Fingerprint [32]byte

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// String returns the lowercase hex encoding of the digest, or "" for the
// zero value. This is the form stored in dedup and idempotency records.
func (f Fingerprint) String() string {
	if f.IsZero() {
		return ""
	}
	return hex.EncodeToString(f[:])
}

// FingerprintBytes computes the fingerprint of an in-memory byte slice.
func FingerprintBytes(b []byte) Fingerprint {
	return blake3.Sum256(b)
}

// FingerprintFile computes the fingerprint of a file's current content
// without loading it fully into memory.
func FingerprintFile(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp, nil
}
