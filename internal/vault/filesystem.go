package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileSystemVault stores content and snapshots under a root directory:
//
//	<root>/
//	  content/
//	    <cc>/<checksum>       (first two hex digits shard the files)
//	  snapshots/
//	    <deviceID>/<name>
//	    <deviceID>/<name>.version
//
// The root is typically a synced or mounted directory.
type FileSystemVault struct {
	name        string
	root        string
	contentDir  string
	snapshotDir string
}

func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	contentDir := filepath.Join(root, "content")
	snapshotDir := filepath.Join(root, "snapshots")

	for _, dir := range []string{contentDir, snapshotDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		contentDir:  contentDir,
		snapshotDir: snapshotDir,
	}, nil
}

func (v *FileSystemVault) Name() string { return v.name }

func (v *FileSystemVault) PutContent(_ context.Context, checksum string, r io.Reader, size int64) error {
	dest, err := v.contentPath(checksum)
	if err != nil {
		return err
	}

	if _, err := os.Stat(dest); err == nil {
		// Already stored; still drain r so the caller sees size errors.
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}
	return writeAtomic(dest, r, size)
}

func (v *FileSystemVault) GetContent(_ context.Context, checksum string, w io.Writer) error {
	src, err := v.contentPath(checksum)
	if err != nil {
		return err
	}
	return readInto(src, w, "content "+checksum)
}

func (v *FileSystemVault) HasContent(_ context.Context, checksum string) (bool, error) {
	src, err := v.contentPath(checksum)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(src)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking content: %w", err)
	}
}

func (v *FileSystemVault) PutSnapshot(_ context.Context, deviceID, name string, r io.Reader, size int64, version int64) error {
	dest, err := v.snapshotPath(deviceID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := writeAtomic(dest, r, size); err != nil {
		return err
	}
	ver := strconv.FormatInt(version, 10)
	return writeAtomic(dest+".version", strings.NewReader(ver), int64(len(ver)))
}

func (v *FileSystemVault) GetSnapshot(_ context.Context, deviceID, name string, w io.Writer) error {
	src, err := v.snapshotPath(deviceID, name)
	if err != nil {
		return err
	}
	return readInto(src, w, fmt.Sprintf("snapshot %q for device %s", name, deviceID))
}

func (v *FileSystemVault) SnapshotVersion(_ context.Context, deviceID, name string) (int64, error) {
	src, err := v.snapshotPath(deviceID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(src + ".version")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup checks that the vault directories exist and are writable.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	for _, dir := range []string{v.root, v.contentDir, v.snapshotDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}

	probe, err := os.CreateTemp(v.contentDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault is not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

func (v *FileSystemVault) contentPath(checksum string) (string, error) {
	if err := checkKey("checksum", checksum); err != nil {
		return "", err
	}
	shard := checksum
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return filepath.Join(v.contentDir, shard, checksum), nil
}

func (v *FileSystemVault) snapshotPath(deviceID, name string) (string, error) {
	if err := checkKey("device id", deviceID); err != nil {
		return "", err
	}
	if err := checkKey("snapshot name", name); err != nil {
		return "", err
	}
	return filepath.Join(v.snapshotDir, deviceID, name), nil
}

// checkKey rejects keys that would escape their directory.
func checkKey(what, key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid %s %q", what, key)
	}
	return nil
}

// writeAtomic writes r to dest through a temp file and rename, so readers
// never see a partial file.
func writeAtomic(dest string, r io.Reader, expectedSize int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func readInto(src string, w io.Writer, what string) error {
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

var _ Vault = (*FileSystemVault)(nil)
