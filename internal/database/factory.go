package database

import (
	"fmt"
	"path/filepath"

	"acta-go/internal/config"
)

// NewDatabaseFromConfig opens the journal selected by cfg. File journals
// are named after the device so several devices can share a data dir.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, deviceID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if deviceID == "" {
			return nil, fmt.Errorf("device_id required for sqlite database")
		}
		return NewSQLiteDatabase(JournalPath(cfg.DataDir, deviceID))
	case "memory":
		return NewSQLiteDatabase(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// JournalPath is the file a device's sqlite journal lives in.
func JournalPath(dataDir, deviceID string) string {
	return filepath.Join(dataDir, "journal-"+deviceID+".db")
}
