package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironfield/server/internal/config"
	"github.com/ironfield/server/server"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the server's TOML configuration file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := run(*configPath, log); err != nil {
		log.Error("fieldserver exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	uc, err := config.Load(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("config file not found, writing defaults", "path", configPath)
			uc = config.Default()
			if writeErr := writeDefaultConfig(configPath, uc); writeErr != nil {
				return fmt.Errorf("write default config: %w", writeErr)
			}
		} else {
			return fmt.Errorf("load config: %w", err)
		}
	}

	cfg, err := server.FromUserConfig(uc, log)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("fieldserver listening", "address", cfg.ListenAddress)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	srv.Shutdown()
	return nil
}

func writeDefaultConfig(path string, uc config.UserConfig) error {
	return config.Save(path, uc)
}
