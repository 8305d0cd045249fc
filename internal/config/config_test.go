package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigDir(t *testing.T, public, private string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "public.yaml"), []byte(public), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "private.yaml"), []byte(private), 0o600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestMustLoad_OverridesAndDefaults(t *testing.T) {
	dir := writeConfigDir(t,
		"listen_addr: ':9090'\nmax_post_photos: 3\nwatcher_recheck_delay_sec: 5\n",
		"jwt_key: 'secret'\npg:\n  host: localhost\n  port: 5432\n  user: u\n  password: p\n  dbname: unifeed\n")

	cfg := MustLoad(dir)

	if cfg.Public.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.Public.ListenAddr)
	}
	if cfg.Public.MaxPostPhotos != 3 {
		t.Errorf("max_post_photos = %d", cfg.Public.MaxPostPhotos)
	}
	if cfg.WatcherRecheckDelay() != 5*time.Second {
		t.Errorf("watcher recheck delay = %v", cfg.WatcherRecheckDelay())
	}
	// Untouched fields keep their defaults.
	if cfg.Public.QueueWorkers != Default().QueueWorkers {
		t.Errorf("queue_workers = %d, want default", cfg.Public.QueueWorkers)
	}
	if len(cfg.Public.AllowedImageMimeTypes) == 0 {
		t.Error("allowed mime types default missing")
	}
	if cfg.JwtKey() != "secret" {
		t.Errorf("jwt key = %q", cfg.JwtKey())
	}
	if cfg.Private.Pg.Dbname != "unifeed" {
		t.Errorf("dbname = %q", cfg.Private.Pg.Dbname)
	}
}

func TestMustLoad_MissingFilePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for missing config file, got none")
		}
	}()

	_ = MustLoad(t.TempDir())
}
