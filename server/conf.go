// Package server wires the field simulation, the write-behind storage
// pipeline, and the TCP session layer together into one running
// process, following the teacher's UserConfig -> Config -> Server split:
// a plain TOML-loadable shape lives in internal/config, it resolves
// into this package's Config, and New builds the Server from it.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ironfield/server/field"
	"github.com/ironfield/server/internal/config"
	"github.com/ironfield/server/session"
	"github.com/ironfield/server/storage"
)

// Config holds everything needed to build a Server: resolved from a
// config.UserConfig by FromUserConfig, or assembled directly by callers
// that don't want a TOML file (tests, embedding).
type Config struct {
	Log *slog.Logger

	ListenAddress string
	MaxBatchDrain int

	Field   field.WorkerConfig
	Storage storage.Config

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisTimeout  time.Duration

	MySQLDSN string

	BanlistFile string

	MetricsRegisterer prometheus.Registerer
}

// FromUserConfig resolves a TOML-loaded config.UserConfig into a
// runtime Config, the same responsibility the teacher's
// UserConfig.Config(log) carries out for its own dimension/world/
// player settings.
func FromUserConfig(uc config.UserConfig, log *slog.Logger) (Config, error) {
	fieldCfg := field.DefaultWorkerConfig()
	fieldCfg.SectorSize = uc.Sector.Size
	fieldCfg.ViewRadius = uc.Sector.ViewRadiusSectors
	fieldCfg.SeedMonsters = true

	cfg := Config{
		Log:           log,
		ListenAddress: uc.Network.Address,
		MaxBatchDrain: uc.Network.MaxBatchDrain,
		Field:         fieldCfg,
		Storage: storage.Config{
			FlushInterval: time.Duration(uc.Storage.FlushIntervalMs) * time.Millisecond,
			MaxBatchUIDs:  uc.Storage.MaxBatchUIDs,
			MaxQueue:      uc.Storage.MaxQueue,
		},
		RedisAddress:  uc.Redis.Address,
		RedisPassword: uc.Redis.Password,
		RedisDB:       uc.Redis.DB,
		RedisTimeout:  time.Duration(uc.Redis.TimeoutMs) * time.Millisecond,
		MySQLDSN:      uc.MySQL.DSN,
		BanlistFile:   "banlist.toml",
	}
	if cfg.ListenAddress == "" {
		return Config{}, fmt.Errorf("server: network.address must not be empty")
	}
	return cfg, nil
}

// Server is a running field simulation: its accept loop, its field
// manager, and the storage pipeline backing every field's dirty users.
type Server struct {
	cfg Config
	log *slog.Logger

	manager  *field.Manager
	registry *session.Registry
	storage  *storage.System
	bans     *Banlist

	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server from cfg: it creates the Redis and MySQL clients
// (connections are opened later, by the storage pipeline's connector),
// opens the TCP listener, and constructs the field manager and session
// registry. The returned Server has not started accepting connections
// yet; call ListenAndServe for that.
func New(cfg Config) (*Server, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	bans, err := LoadBanlist(cfg.BanlistFile)
	if err != nil {
		return nil, fmt.Errorf("server: load banlist: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddress,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: cfg.RedisTimeout,
	})
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, fmt.Errorf("server: open mysql: %w", err)
	}

	cache := storage.NewRedisCache(rdb)
	durable := storage.NewMySQLDurable(db)
	connector := storage.NewRedisMySQLConnector(rdb, db)
	metrics := storage.NewMetrics(cfg.MetricsRegisterer)
	storageSys := storage.New(cfg.Storage, cache, durable, connector, metrics, log)

	registry := session.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	manager := field.NewManager(ctx, cfg.Field, registry, storageSys, log)

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("server: listen %s: %w", cfg.ListenAddress, err)
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		manager:  manager,
		registry: registry,
		storage:  storageSys,
		bans:     bans,
		listener: listener,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// ListenAndServe runs the storage pipeline and the TCP accept loop until
// ctx is cancelled or the listener fails to accept.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.storage.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				return fmt.Errorf("server: accept: %w", err)
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess := session.New(conn, s.manager, s.registry, s.bans, s.log)
			if err := sess.Serve(); err != nil {
				s.log.Debug("session ended", "error", err)
			}
		}()
	}
}

// Shutdown stops every field worker and releases the listener. It does
// not wait for in-flight connections to finish; callers should cancel
// the context passed to ListenAndServe first and let Accept unwind.
func (s *Server) Shutdown() {
	s.cancel()
	s.manager.Shutdown()
	s.listener.Close()
}

// Banlist returns the server's player banlist, so operator tooling
// (an admin command, a CLI subcommand) can ban or unban a player id
// without restarting the process.
func (s *Server) Banlist() *Banlist {
	return s.bans
}
