package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultHasUsableNetworkAddress(t *testing.T) {
	c := Default()
	if c.Network.Address == "" {
		t.Fatalf("expected a default network address")
	}
	if c.Storage.MaxQueue <= 0 {
		t.Fatalf("expected a positive default storage queue size")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c := Default()
	c.Network.Address = ":7777"
	c.Sector.ViewRadiusSectors = 3

	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Network.Address != ":7777" {
		t.Fatalf("expected address to round-trip, got %q", loaded.Network.Address)
	}
	if loaded.Sector.ViewRadiusSectors != 3 {
		t.Fatalf("expected view radius to round-trip, got %d", loaded.Sector.ViewRadiusSectors)
	}
}

func TestLoadAppliesDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	// A file that only sets one key; every other key must come from Default().
	if err := os.WriteFile(path, []byte("[sector]\nview_radius_sectors = 5\n"), 0644); err != nil {
		t.Fatalf("write partial config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Sector.ViewRadiusSectors != 5 {
		t.Fatalf("expected the set key to be honoured, got %d", loaded.Sector.ViewRadiusSectors)
	}
	if loaded.Network.Address != Default().Network.Address {
		t.Fatalf("expected unset network.address to fall back to the default, got %q", loaded.Network.Address)
	}
	if loaded.Storage.MaxQueue != Default().Storage.MaxQueue {
		t.Fatalf("expected unset storage.max_queue to fall back to the default, got %d", loaded.Storage.MaxQueue)
	}
}
