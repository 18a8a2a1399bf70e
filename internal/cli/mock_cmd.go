// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// mock_cmd.go - Local fixture backend.
//
// Usage:
//
//	querychat mock-server [--port 8787] [--latency 1.5s]
//
// Answers are canned: "how many" gives a count, "summarize" a summary,
// "list"/"show"/"top N" a table and "fail" a server error.

package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/querychat/internal/server"
)

// shutdownTimeout bounds graceful shutdown of the mock backend.
const shutdownTimeout = 5 * time.Second

// HandleMockServer runs the fixture backend until interrupted.
func HandleMockServer(args Args) error {
	parser := NewArgParser(args.Rest)

	port := server.DefaultPort
	if v := parser.Flag("port", "p"); v != "" {
		p, err := ParseIntWithValidation(v, "port")
		if err != nil || p > 65535 {
			return NewValidationErrorWithExample("port", v, "must be between 1 and 65535", "querychat mock-server --port 9000")
		}
		port = p
	}

	var latency time.Duration
	if v := parser.Flag("latency"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return NewValidationErrorWithExample("latency", v, "must be a duration", "querychat mock-server --latency 1.5s")
		}
		latency = d
	}

	logger := log.New(stderr, "", log.Ltime)
	if args.Quiet {
		logger.SetOutput(io.Discard)
	}
	srv := server.NewServer(port).WithLatency(latency).WithLogger(logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	if !args.Quiet {
		fmt.Fprintln(stdout, SuccessStyle.Render("Mock backend running"))
		fmt.Fprintln(stdout, RenderLabel("Query endpoint:")+fmt.Sprintf("http://127.0.0.1:%d/query", port))
		fmt.Fprintln(stdout, RenderLabel("Health:")+fmt.Sprintf("http://127.0.0.1:%d/health", port))
		fmt.Fprintln(stdout, DimStyle.Render(fmt.Sprintf("Try: querychat --endpoint http://127.0.0.1:%d/query ask \"how many orders?\"", port)))
		fmt.Fprintln(stdout, DimStyle.Render("Press Ctrl+C to stop."))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil {
			return NewCommandError("mock-server", "start", fmt.Sprintf("could not listen on port %d", port), err)
		}
		return nil
	case <-sigCh:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return NewCommandError("mock-server", "shutdown", "graceful shutdown failed", err)
	}

	if !args.Quiet {
		stats := srv.Stats()
		fmt.Fprintf(stdout, "\nServed %d requests in %s:", stats.TotalRequests, stats.Uptime().Round(time.Second))
		for _, kind := range server.Kinds {
			if n := stats.Count(kind); n > 0 {
				fmt.Fprintf(stdout, " %s=%d", kind, n)
			}
		}
		fmt.Fprintln(stdout)
	}
	return nil
}
