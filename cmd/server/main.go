package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tuannm99/novardb/internal/config"
	"github.com/tuannm99/novardb/internal/logging"
	"github.com/tuannm99/novardb/internal/storage"
	"github.com/tuannm99/novardb/server/novawire"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "YAML config file (NOVARDB_* env vars override it)")
		addr    = flag.String("addr", "", "listen address, overrides server.addr")
		dataDir = flag.String("data-dir", "", "data directory, overrides storage.data_dir")
	)
	flag.Parse()

	if err := run(*cfgPath, *addr, *dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "novardb: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, addr, dataDir string) error {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	level := cfg.Log.Level
	if cfg.Server.Debug {
		level = "debug"
	}
	if err := logging.Setup(level, cfg.Log.Format); err != nil {
		return err
	}
	mode, err := storage.GetStorageMode(cfg.Storage.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "app", cfg.AppName, "addr", cfg.Server.Addr, "data_dir", cfg.Storage.DataDir)
	return novawire.Run(ctx, novawire.ServerConfig{
		Addr:            cfg.Server.Addr,
		Mode:            mode,
		DataDir:         cfg.Storage.DataDir,
		DefaultDatabase: cfg.Storage.DefaultDatabase,
		RateLimit:       cfg.Server.RateLimit,
		RateBurst:       cfg.Server.RateBurst,
	})
}
