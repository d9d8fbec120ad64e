package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/custom/acta.toml")
		t.Setenv(EnvHome, "/custom/acta")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if d.ConfigPath != "/custom/acta.toml" {
			t.Errorf("ConfigPath = %q", d.ConfigPath)
		}
		if d.BaseDir != "/custom/acta" {
			t.Errorf("BaseDir = %q", d.BaseDir)
		}
		if d.LogDir != "/custom/acta/log" {
			t.Errorf("LogDir = %q", d.LogDir)
		}
		if len(d.EnvFiles) != 2 || d.EnvFiles[1] != "/custom/acta/.env" {
			t.Errorf("EnvFiles = %v", d.EnvFiles)
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvHome, "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		homeDir, _ := os.UserHomeDir()

		if want := filepath.Join(homeDir, ".config", "acta.toml"); d.ConfigPath != want {
			t.Errorf("ConfigPath = %q, want %q", d.ConfigPath, want)
		}
		if want := filepath.Join(homeDir, ".local", "share", "acta"); d.BaseDir != want {
			t.Errorf("BaseDir = %q, want %q", d.BaseDir, want)
		}
	})
}
