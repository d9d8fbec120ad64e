// Package vault stores archived handover evidence off the device.
//
// Content (encrypted signatures and acta PDFs) is addressed by the
// SHA-256 of its plaintext and written once. Snapshots are per-device
// named blobs, such as the journal backup, that are replaced on every
// upload and carry a monotonically increasing version.
package vault

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a content or snapshot key does not exist.
var ErrNotFound = errors.New("not found in vault")

// Vault is implemented by every storage backend.
type Vault interface {
	Name() string

	// PutContent stores r under checksum. Storing an existing checksum
	// again is a no-op after the size is verified.
	PutContent(ctx context.Context, checksum string, r io.Reader, size int64) error
	GetContent(ctx context.Context, checksum string, w io.Writer) error
	HasContent(ctx context.Context, checksum string) (bool, error)

	PutSnapshot(ctx context.Context, deviceID, name string, r io.Reader, size int64, version int64) error
	GetSnapshot(ctx context.Context, deviceID, name string, w io.Writer) error
	// SnapshotVersion returns 0 when nothing was stored yet.
	SnapshotVersion(ctx context.Context, deviceID, name string) (int64, error)

	ValidateSetup(ctx context.Context) error
}
