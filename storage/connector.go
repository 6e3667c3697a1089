package storage

import (
	"context"
	"database/sql"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Connector models the original's ensure_connected/connect_db/disconnect_db
// trio: idempotent if both handles are already open, otherwise it closes
// whatever is half-open and reconnects both together.
type Connector interface {
	EnsureConnected(ctx context.Context) error
	Disconnect()
}

// RedisMySQLConnector tracks whether the cache and durable-store handles
// are open and pings both to reopen them when either is not.
type RedisMySQLConnector struct {
	mu        sync.Mutex
	rdb       *redis.Client
	db        *sql.DB
	cacheOpen bool
	dbOpen    bool
}

// NewRedisMySQLConnector builds a Connector over already-constructed
// clients; it only manages the open/closed bookkeeping, not client
// construction.
func NewRedisMySQLConnector(rdb *redis.Client, db *sql.DB) *RedisMySQLConnector {
	return &RedisMySQLConnector{rdb: rdb, db: db}
}

// EnsureConnected is a no-op if both handles are already open; otherwise
// it disconnects defensively and pings both to reopen.
func (c *RedisMySQLConnector) EnsureConnected(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cacheOpen && c.dbOpen {
		return nil
	}

	c.disconnectLocked()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	c.cacheOpen = true

	if err := c.db.PingContext(ctx); err != nil {
		c.cacheOpen = false
		return err
	}
	c.dbOpen = true

	return nil
}

// Disconnect marks both handles closed; the next EnsureConnected call
// reopens them. It does not close the underlying *redis.Client or *sql.DB
// (those are owned by whoever constructed them).
func (c *RedisMySQLConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *RedisMySQLConnector) disconnectLocked() {
	c.cacheOpen = false
	c.dbOpen = false
}
