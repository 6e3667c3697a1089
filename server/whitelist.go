package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pelletier/go-toml"
)

// ErrBanlistUnavailable is returned when no banlist was configured.
var ErrBanlistUnavailable = errors.New("banlist is not configured")

// Banlist controls which player uids are refused at login, persisted in
// a TOML file — the same toml-backed, RWMutex-guarded persistence
// pattern the teacher's whitelist uses, repurposed from player names to
// numeric player ids since this protocol has no display-name handshake.
type Banlist struct {
	mu       sync.RWMutex
	banned   map[uint64]struct{}
	filePath string
}

type banlistFile struct {
	UIDs []uint64 `toml:"uids"`
}

// LoadBanlist loads the banlist stored at path, creating an empty one if
// the file does not exist yet.
func LoadBanlist(path string) (*Banlist, error) {
	if path == "" {
		return nil, errors.New("banlist path must not be empty")
	}
	b := &Banlist{banned: make(map[uint64]struct{}), filePath: path}
	if err := b.reloadFromDisk(); err != nil {
		return nil, err
	}
	return b, nil
}

// Banned reports whether uid is currently banned.
func (b *Banlist) Banned(uid uint64) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.banned[uid]
	return ok
}

// Ban adds uid to the banlist. The returned bool reports whether it was
// newly added.
func (b *Banlist) Ban(uid uint64) (bool, error) {
	if b == nil {
		return false, ErrBanlistUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.banned[uid]; exists {
		return false, nil
	}
	b.banned[uid] = struct{}{}
	if err := b.writeLocked(); err != nil {
		delete(b.banned, uid)
		return false, err
	}
	return true, nil
}

// Unban removes uid from the banlist. The returned bool reports whether
// it was present before the call.
func (b *Banlist) Unban(uid uint64) (bool, error) {
	if b == nil {
		return false, ErrBanlistUnavailable
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.banned[uid]; !exists {
		return false, nil
	}
	delete(b.banned, uid)
	if err := b.writeLocked(); err != nil {
		b.banned[uid] = struct{}{}
		return false, err
	}
	return true, nil
}

func (b *Banlist) reloadFromDisk() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := banlistFile{}
	contents, err := os.ReadFile(b.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.banned = make(map[uint64]struct{})
			return b.writeLocked()
		}
		return fmt.Errorf("read banlist: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode banlist: %w", err)
		}
	}
	b.banned = make(map[uint64]struct{}, len(data.UIDs))
	for _, uid := range data.UIDs {
		b.banned[uid] = struct{}{}
	}
	return nil
}

func (b *Banlist) writeLocked() error {
	dir := filepath.Dir(b.filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create banlist directory: %w", err)
		}
	}
	uids := make([]uint64, 0, len(b.banned))
	for uid := range b.banned {
		uids = append(uids, uid)
	}
	slices.Sort(uids)
	encoded, err := toml.Marshal(banlistFile{UIDs: uids})
	if err != nil {
		return fmt.Errorf("encode banlist: %w", err)
	}
	return os.WriteFile(b.filePath, encoded, 0644)
}
