package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dasos/peek/internal/api"
	"github.com/dasos/peek/internal/metrics"
	"github.com/dasos/peek/pkg/config"
	"github.com/dasos/peek/pkg/httpserver"
	"github.com/dasos/peek/pkg/logger"
	"github.com/dasos/peek/pkg/schema"
	"github.com/dasos/peek/pkg/store"
)

type appConfig struct {
	// ConfigPaths lists source config directories, separated by the OS
	// path list separator.
	ConfigPaths string `env:"PEEK_CONFIG_PATHS" envDefault:"./config"`
	// DBPath is the sqlite database file; empty selects in-memory storage.
	DBPath     string `env:"PEEK_DB_PATH"`
	Addr       string `env:"PEEK_ADDR" envDefault:":8000"`
	LogLevel   string `env:"PEEK_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"PEEK_LOG_FORMAT" envDefault:"json"`
	BufferSize int    `env:"PEEK_BUFFER_SIZE" envDefault:"64"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "peek:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(
		logger.WithLevel(cfg.LogLevel),
		logger.WithFormat(cfg.LogFormat),
		logger.WithService("peek"),
	)
	logger.SetAsDefault(log)

	reg, err := schema.Load(splitPaths(cfg.ConfigPaths), schema.WithLogger(log))
	if err != nil {
		return fmt.Errorf("load source configs: %w", err)
	}

	ctx := context.Background()

	var storage store.Storage
	if cfg.DBPath == "" {
		storage = store.NewMemoryStorage()
		log.Info("using in-memory storage")
	} else {
		sq, err := store.NewSQLiteStorage(ctx, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite storage: %w", err)
		}
		storage = sq
		log.Info("using sqlite storage", "path", cfg.DBPath)
	}

	st := store.New(storage, reg.Slugs(),
		store.WithBufferSize(cfg.BufferSize),
		store.WithStoreLogger(log),
	)
	defer st.Close()

	srv := api.New(st, reg, metrics.New(), api.WithLogger(log))

	log.Info("starting", "addr", cfg.Addr, "sources", reg.Slugs())
	return httpserver.New(
		httpserver.WithAddr(cfg.Addr),
		httpserver.WithLogger(log),
	).Run(ctx, srv.Router())
}

// splitPaths splits a PATH-style list of config directories.
func splitPaths(raw string) []string {
	var dirs []string
	for _, part := range strings.Split(raw, string(os.PathListSeparator)) {
		if p := strings.TrimSpace(part); p != "" {
			dirs = append(dirs, p)
		}
	}
	return dirs
}
