package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Storage.DatabasePath != "data/audify.db" {
			t.Errorf("expected database path data/audify.db, got %s", config.Storage.DatabasePath)
		}

		if config.Server.Port != 5000 {
			t.Errorf("expected server port 5000, got %d", config.Server.Port)
		}

		if config.Provider.Binary != "yt-dlp" {
			t.Errorf("expected provider binary yt-dlp, got %s", config.Provider.Binary)
		}

		if config.Exporter.Binary != "spotdl" {
			t.Errorf("expected exporter binary spotdl, got %s", config.Exporter.Binary)
		}

		if config.Jobs.RetentionMinutes != 10 {
			t.Errorf("expected retention 10 minutes, got %d", config.Jobs.RetentionMinutes)
		}
	})

	t.Run("DownloadsDir", func(t *testing.T) {
		config := DefaultConfig()
		if got := config.DownloadsDir(); got != filepath.Join("data", "downloads") {
			t.Errorf("DownloadsDir() = %q, want data/downloads", got)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Storage.DatabasePath != defaultConfig.Storage.DatabasePath {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		content := `
[server]
host = "0.0.0.0"
port = 8000

[storage]
data_dir = "/var/lib/audify"
database_path = "/var/lib/audify/audify.db"

[import]
rate_limit = 2.5
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Host != "0.0.0.0" || config.Server.Port != 8000 {
			t.Errorf("server = %+v, want 0.0.0.0:8000", config.Server)
		}
		if config.Import.RateLimit != 2.5 {
			t.Errorf("rate_limit = %v, want 2.5", config.Import.RateLimit)
		}
		if config.DownloadsDir() != filepath.Join("/var/lib/audify", "downloads") {
			t.Errorf("DownloadsDir() = %q", config.DownloadsDir())
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("loading a missing config should fail")
		}
	})

	t.Run("LoadConfig invalid toml", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := os.WriteFile(configPath, []byte("[[[not toml"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("loading invalid TOML should fail")
		}
	})
}
