package offsetstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_in_memory(t *testing.T) {
	s, err := Open("", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	changes := 0
	unsubscribe := s.Subscribe(func() { changes++ })

	t.Run("set", func(t *testing.T) {
		if err := s.Set("44", 1.5); err != nil {
			t.Fatalf("Set: %v", err)
		}
		v, ok := s.Override("44")
		if !ok || v != 1.5 {
			t.Errorf("Override(44) = %v, %v", v, ok)
		}
		if changes != 1 {
			t.Errorf("expected 1 notification, got %d", changes)
		}
	})

	t.Run("same_value_does_not_notify", func(t *testing.T) {
		_ = s.Set("44", 1.5)
		if changes != 1 {
			t.Errorf("unchanged value should not notify, got %d", changes)
		}
	})

	t.Run("empty_key", func(t *testing.T) {
		if err := s.Set("", 1); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete("44"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok := s.Override("44"); ok {
			t.Error("override should be gone")
		}
		if err := s.Delete("44"); !errors.Is(err, ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("unsubscribe", func(t *testing.T) {
		before := changes
		unsubscribe()
		unsubscribe()
		_ = s.Set("data-channel", -2)
		if changes != before {
			t.Error("unsubscribed listener was notified")
		}
	})
}

func TestStore_persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")

	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Set("16", -0.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.AdditionalStreams["16"] != -0.5 {
		t.Errorf("unexpected file contents %s (%v)", data, err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok := reopened.Override("16"); !ok || v != -0.5 {
		t.Errorf("reopened Override(16) = %v, %v", v, ok)
	}
}

func TestStore_reloads_external_edits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	changed := make(chan struct{}, 8)
	s.Subscribe(func() { changed <- struct{}{} })

	if err := os.WriteFile(path, []byte(`{"additionalStreams":{"44":2.25}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification after external edit")
	}
	if v, ok := s.Override("44"); !ok || v != 2.25 {
		t.Errorf("Override(44) = %v, %v", v, ok)
	}
}

func TestStore_keeps_overrides_while_file_moved_aside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	if err := os.WriteFile(path, []byte(`{"additionalStreams":{"44":2.5}}`), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	changed := make(chan struct{}, 8)
	s.Subscribe(func() { changed <- struct{}{} })

	if err := os.Rename(path, path+"~"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	select {
	case <-changed:
		t.Fatal("moving the file aside notified subscribers")
	case <-time.After(300 * time.Millisecond):
	}
	if v, ok := s.Override("44"); !ok || v != 2.5 {
		t.Errorf("after rename-aside Override(44) = %v, %v", v, ok)
	}

	if err := os.WriteFile(path, []byte(`{"additionalStreams":{"44":3}}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification after the file was saved again")
	}
	if v, ok := s.Override("44"); !ok || v != 3 {
		t.Errorf("after save Override(44) = %v, %v", v, ok)
	}
}

func TestOpen_invalid_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, nil); err == nil {
		t.Error("expected error for invalid override file")
	}
}

func TestLoadStatic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "static.json")
	body := `[
		{"channelToAdjust": "OBC", "channels": ["OBC", "PRES"], "delaySeconds": 3.5},
		{"channelToAdjust": "DATA", "channels": ["DATA", "WIF"], "delaySeconds": -1}
	]`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadStatic(path, 2020)
	if err != nil {
		t.Fatalf("LoadStatic: %v", err)
	}
	if got := table.Lookup("driver", "main"); got != 3.5 {
		t.Errorf("driver/main = %v, want 3.5", got)
	}
	if got := table.Lookup("data-channel", "main"); got != -1 {
		t.Errorf("data-channel/main = %v, want -1 (WIF is main in 2020)", got)
	}

	if table, err := LoadStatic("", 2024); err != nil || len(table) != 0 {
		t.Errorf("empty path: table=%v err=%v", table, err)
	}
	if _, err := LoadStatic(filepath.Join(t.TempDir(), "missing.json"), 2024); err == nil {
		t.Error("expected error for missing file")
	}
}
