package server

import (
	"path/filepath"
	"testing"
)

func TestLoadBanlistCreatesEmptyFileWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banlist.toml")
	b, err := LoadBanlist(path)
	if err != nil {
		t.Fatalf("LoadBanlist: %v", err)
	}
	if b.Banned(1) {
		t.Fatalf("expected fresh banlist to have no banned uids")
	}
}

func TestBanPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banlist.toml")
	b, err := LoadBanlist(path)
	if err != nil {
		t.Fatalf("LoadBanlist: %v", err)
	}
	if added, err := b.Ban(7); err != nil || !added {
		t.Fatalf("Ban: added=%v err=%v", added, err)
	}
	if !b.Banned(7) {
		t.Fatalf("expected uid 7 to be banned")
	}

	reloaded, err := LoadBanlist(path)
	if err != nil {
		t.Fatalf("reload LoadBanlist: %v", err)
	}
	if !reloaded.Banned(7) {
		t.Fatalf("expected ban to persist across reload")
	}
}

func TestBanTwiceReportsNotNewlyAdded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banlist.toml")
	b, err := LoadBanlist(path)
	if err != nil {
		t.Fatalf("LoadBanlist: %v", err)
	}
	if _, err := b.Ban(3); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	added, err := b.Ban(3)
	if err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if added {
		t.Fatalf("expected second ban of same uid to report not newly added")
	}
}

func TestUnban(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banlist.toml")
	b, err := LoadBanlist(path)
	if err != nil {
		t.Fatalf("LoadBanlist: %v", err)
	}
	if _, err := b.Ban(9); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	removed, err := b.Unban(9)
	if err != nil || !removed {
		t.Fatalf("Unban: removed=%v err=%v", removed, err)
	}
	if b.Banned(9) {
		t.Fatalf("expected uid 9 to no longer be banned")
	}
}

func TestNilBanlistAllowsEverything(t *testing.T) {
	var b *Banlist
	if b.Banned(1) {
		t.Fatalf("nil banlist should admit everyone")
	}
}
