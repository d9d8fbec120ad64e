package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"acta-go/internal/archive"
	"acta-go/internal/config"
	"acta-go/internal/database"
	"acta-go/internal/encryption"
	"acta-go/internal/vault"
)

// RestoreJournal downloads this device's journal snapshot, decrypts it
// and writes it to dest. An empty dest means the configured journal file,
// which is only replaced when force is set. It works without a backend so
// a journal that is behind the vault can be repaired.
func RestoreJournal(ctx context.Context, cfg *config.Config, passphrase, dest string, force bool) (int64, error) {
	if dest == "" {
		if cfg.Database.Type != "sqlite" {
			return 0, fmt.Errorf("journal type %q has no file to restore into, use --output", cfg.Database.Type)
		}
		dest = database.JournalPath(cfg.Database.DataDir, cfg.DeviceID)
	}
	if _, err := os.Stat(dest); err == nil && !force {
		return 0, fmt.Errorf("%s exists (use --force to replace it)", dest)
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		return 0, fmt.Errorf("creating vault: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		return 0, err
	}

	svc := archive.NewService(nil, v, enc, nil, cfg.DeviceID, 0, nil)
	version, err := svc.SnapshotVersion(ctx)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		return 0, fmt.Errorf("no journal snapshot for device %s in vault %s", cfg.DeviceID, v.Name())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("creating journal directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".journal-restore-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := svc.RestoreJournal(ctx, dec, tmp); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("writing journal: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("installing journal: %w", err)
	}
	return version, nil
}
