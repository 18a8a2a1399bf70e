// querychat - Ask your data questions from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/querychat/internal/cli"
	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/storage"
	"github.com/jeranaias/querychat/internal/ui/chat"
	"github.com/jeranaias/querychat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	args := cli.Parse()
	cli.SetupLogging(args)

	if err := run(args); err != nil {
		cli.PrintError(args.Command.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// run routes a parsed command line to its handler.
func run(args cli.Args) error {
	switch args.Command {
	case cli.CmdTUI:
		return runTUI(args)
	case cli.CmdAsk:
		return cli.HandleAsk(args)
	case cli.CmdChat:
		return cli.HandleChat(args)
	case cli.CmdHistory:
		return cli.HandleHistory(args)
	case cli.CmdConfig:
		return cli.HandleConfig(args)
	case cli.CmdDoctor:
		return cli.HandleDoctor(args)
	case cli.CmdMockServer:
		return cli.HandleMockServer(args)
	case cli.CmdVersion:
		cli.PrintVersion()
		return nil
	default:
		cli.PrintUsage()
		if args.Unknown != "" {
			return cli.UnknownCommandError(args.Unknown)
		}
		return nil
	}
}

// runTUI starts the full-screen chat.
func runTUI(args cli.Args) error {
	cfg, err := cli.LoadConfig(args)
	if err != nil {
		return err
	}

	// Bubble Tea owns the terminal, so logs go to a file.
	if f, err := logToFile(cfg); err == nil {
		defer f.Close()
	}

	store, err := cli.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// The watcher only picks up edits made by other processes; the view
	// still works without it.
	watcher, err := storage.NewWatcher(store, storage.DefaultDebounce)
	if err != nil {
		log.Printf("history watcher disabled: %v", err)
		watcher = nil
	} else {
		defer watcher.Close()
	}

	opts := chat.Options{
		Store:    store,
		Watcher:  watcher,
		Config:   cfg,
		Endpoint: cfg.Backend.Endpoint,
	}
	if client := cli.NewClient(cfg); client.IsConfigured() {
		opts.Client = client
	}

	m := chat.New(styles.NewTheme(cfg.UI.Theme), opts)
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),       // Use alternate screen buffer
		tea.WithMouseCellMotion(), // Enable mouse support
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}

// logToFile points the standard logger at the data directory log file.
func logToFile(cfg *config.Config) (*os.File, error) {
	logPath, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return tea.LogToFile(logPath, "querychat")
}
