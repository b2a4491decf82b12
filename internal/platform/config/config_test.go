package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv_fallbacks(t *testing.T) {
	t.Setenv("SYNC_TEST_STR", "")
	t.Setenv("SYNC_TEST_BAD", "not-a-number")

	if got := GetEnv("SYNC_TEST_STR", "x"); got != "x" {
		t.Errorf("GetEnv empty = %q", got)
	}
	if got := GetEnvInt("SYNC_TEST_BAD", 7); got != 7 {
		t.Errorf("GetEnvInt invalid = %d", got)
	}
	if got := GetEnvFloat("SYNC_TEST_BAD", 1.5); got != 1.5 {
		t.Errorf("GetEnvFloat invalid = %v", got)
	}
	if got := GetEnvDuration("SYNC_TEST_BAD", time.Second); got != time.Second {
		t.Errorf("GetEnvDuration invalid = %v", got)
	}
}

func TestGetEnv_values(t *testing.T) {
	t.Setenv("SYNC_TEST_INT", "2024")
	t.Setenv("SYNC_TEST_FLOAT", "0.75")
	t.Setenv("SYNC_TEST_DUR", "250ms")

	if got := GetEnvInt("SYNC_TEST_INT", 0); got != 2024 {
		t.Errorf("GetEnvInt = %d", got)
	}
	if got := GetEnvFloat("SYNC_TEST_FLOAT", 0); got != 0.75 {
		t.Errorf("GetEnvFloat = %v", got)
	}
	if got := GetEnvDuration("SYNC_TEST_DUR", 0); got != 250*time.Millisecond {
		t.Errorf("GetEnvDuration = %v", got)
	}
}

func TestLoad_env_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SYNC_TEST_FROM_FILE=live\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNC_TEST_FROM_FILE", "")
	os.Unsetenv("SYNC_TEST_FROM_FILE")

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := GetEnv("SYNC_TEST_FROM_FILE", ""); got != "live" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestFromEnv_defaults(t *testing.T) {
	for _, k := range []string{"PORT", "PLAYBACK_MODE", "SYNC_INTERVAL", "DRIFT_THRESHOLD_SECONDS", "USER_OFFSETS_PATH"} {
		t.Setenv(k, "")
	}
	t.Setenv("SEASON", "2021")

	s := FromEnv()
	if s.Port != "8080" || s.PlaybackMode != "ondemand" || s.SyncInterval != 0 || s.DriftThreshold != 0 {
		t.Errorf("unexpected defaults %+v", s)
	}
	if s.UserOffsetsPath != "offsets.json" || s.Season != 2021 {
		t.Errorf("unexpected paths/season %+v", s)
	}
}
