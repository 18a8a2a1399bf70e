// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - Configuration, logging and dependency construction shared by
// the commands and by main.

package cli

import (
	"io"
	"log"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/export"
	"github.com/jeranaias/querychat/internal/query"
	"github.com/jeranaias/querychat/internal/storage"
)

// LoadConfig loads the configuration named by --config, or the default
// file, and applies the --endpoint override. The result becomes the global
// configuration.
func LoadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if args.Endpoint != "" {
		cfg.Backend.Endpoint = args.Endpoint
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	config.SetGlobal(cfg)
	return cfg, nil
}

// SetupLogging sends the standard logger to stderr with --verbose and
// discards it otherwise. The TUI redirects it to a file instead.
func SetupLogging(args Args) {
	if args.Verbose {
		log.SetOutput(stderr)
		log.SetFlags(log.Ltime | log.Lmicroseconds)
		return
	}
	log.SetOutput(io.Discard)
}

// NewClient builds a query client from the backend configuration.
func NewClient(cfg *config.Config) *query.Client {
	b := cfg.Backend
	return query.NewClient(b.Endpoint,
		query.WithTimeout(cfg.Timeout()),
		query.WithMaxRetries(b.MaxRetries),
		query.WithRateLimit(b.RatePerSec, b.RateBurst),
		query.WithHeaders(b.Headers),
		query.WithHealthPath(b.HealthPath),
		query.WithLogger(log.Default()),
		query.WithUserAgent("querychat/"+Version),
	)
}

// OpenStore opens the history store selected by the storage configuration.
func OpenStore(cfg *config.Config) (storage.Store, error) {
	dir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}
	return storage.NewStore(storage.Options{
		Backend:    cfg.Storage.Backend,
		Dir:        dir,
		QuotaBytes: cfg.Storage.QuotaBytes,
	})
}

// exportOptions builds export options from the export configuration.
func exportOptions(cfg *config.Config) *export.Options {
	opts := export.DefaultOptions()
	if cfg.Export.OutputDir != "" {
		opts.OutputDir = cfg.Export.OutputDir
	}
	opts.OpenAfterExport = cfg.Export.OpenAfterExport
	opts.IncludeQuery = cfg.UI.ShowQuery
	return opts
}
