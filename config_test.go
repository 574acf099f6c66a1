package rankdesk

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Run("should create the directory and default file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "rankdesk")

		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
			t.Fatalf("\nwanted:\nconfig.yaml\ngot:\n%v", err)
		}
		if cfg.CollectionPath != DefaultCollectionPath {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", DefaultCollectionPath, cfg.CollectionPath)
		}
		if cfg.TokenTTL != 24*time.Hour {
			t.Fatalf("\nwanted:\n24h\ngot:\n%s", cfg.TokenTTL)
		}
		if cfg.DatabasePath() != filepath.Join(dir, "rankdesk.db") {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", filepath.Join(dir, "rankdesk.db"), cfg.DatabasePath())
		}
	})

	t.Run("should read values from the file", func(t *testing.T) {
		dir := t.TempDir()
		content := "api_url: https://rankings.example.com/api\nbatch_create: true\nrequest_timeout: 15s\n"
		if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
			t.Fatalf("writing config: %v", err)
		}

		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if cfg.APIURL != "https://rankings.example.com/api" || !cfg.BatchCreate || cfg.RequestTimeout != 15*time.Second {
			t.Fatalf("\nwanted:\nvalues from file\ngot:\n%+v", cfg)
		}
	})

	t.Run("should prefer environment variables", func(t *testing.T) {
		t.Setenv("RANKDESK_API_URL", "http://env.example.com/api")

		cfg, err := LoadConfig(t.TempDir())
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if cfg.APIURL != "http://env.example.com/api" {
			t.Fatalf("\nwanted:\nhttp://env.example.com/api\ngot:\n%s", cfg.APIURL)
		}
	})

	t.Run("should fail on a malformed file", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api_url: [unterminated"), 0600)

		if _, err := LoadConfig(dir); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})
}

func TestConfig_Set(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	t.Run("should persist known keys", func(t *testing.T) {
		if err := cfg.Set("batch_create", true); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if !cfg.BatchCreate || cfg.ConfigDir != dir {
			t.Fatalf("\nwanted:\nbatch create in %s\ngot:\n%+v", dir, cfg)
		}

		reloaded, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("reloading config: %v", err)
		}
		if !reloaded.BatchCreate {
			t.Fatalf("\nwanted:\nbatch_create persisted\ngot:\nfalse")
		}
	})

	t.Run("should reject unknown keys", func(t *testing.T) {
		if err := cfg.Set("theme", "dark"); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})

	t.Run("should generate the jwt secret once", func(t *testing.T) {
		first, err := cfg.EnsureJWTSecret()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(first) != 64 {
			t.Fatalf("\nwanted:\n64 hex chars\ngot:\n%d", len(first))
		}
		second, _ := cfg.EnsureJWTSecret()
		if first != second {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", first, second)
		}
	})
}
