package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrBlobNotFound is returned by Open and Size when no blob exists at the name.
var ErrBlobNotFound = errors.New("blob not found")

// ObjectStore is a uniform interface over named byte blobs. Both
// implementations honor the same contracts: Save returns the key actually
// written (which differs from name only when the overwrite policy suffixes),
// Delete is idempotent, and URL issues a time-limited signed URL when expiry
// is positive or a stable public URL when it is zero.
type ObjectStore interface {
	// Save writes data under name and returns the final storage key.
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)

	// Open reads the full blob. Returns ErrBlobNotFound if absent.
	Open(ctx context.Context, name string) ([]byte, error)

	// Delete removes the blob. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Exists checks whether a blob is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Size returns the blob length in bytes. Returns ErrBlobNotFound if absent.
	Size(ctx context.Context, name string) (int64, error)

	// URL returns an access URL for the blob. expiry > 0 yields a signed URL
	// valid only for that duration; expiry == 0 yields a stable public URL.
	URL(ctx context.Context, name string, expiry time.Duration) (string, error)
}

// objectKey normalizes a caller-supplied name into a storage key: backslashes
// become slashes, leading slashes are stripped, and the configured location
// prefix is applied. Identical logical names map to identical keys regardless
// of caller formatting.
func objectKey(location, name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimLeft(name, "/")
	if location != "" {
		return strings.TrimSuffix(location, "/") + "/" + name
	}
	return name
}

// suffixedName produces the n-th alternative for a key whose name is taken:
// "a/b.jpg" -> "a/b-1.jpg", "a/b-2.jpg", ...
func suffixedName(name string, n int) string {
	dot := strings.LastIndex(name, ".")
	slash := strings.LastIndex(name, "/")
	if dot <= slash {
		return name + "-" + strconv.Itoa(n)
	}
	return name[:dot] + "-" + strconv.Itoa(n) + name[dot:]
}
