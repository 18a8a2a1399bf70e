// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Setup diagnostics.
//
// Command: doctor
//
// Health checks performed:
//  1. Config            - the configuration file loads and validates
//  2. Endpoint          - a backend endpoint is configured
//  3. Backend           - the backend answers on its health path
//  4. History           - the history loads and its size is within quota
//  5. Data directory    - the data directory is writable
//  6. Export directory  - the export directory is writable
//  7. Clipboard         - a clipboard tool is available for /copy
//
// Exit codes: 0 when nothing failed, 1 otherwise. Warnings do not fail.

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/querychat/internal/config"
	"github.com/jeranaias/querychat/internal/storage"
)

// pingTimeout bounds the reachability check.
const pingTimeout = 5 * time.Second

// quotaWarnRatio is the share of the quota above which doctor warns.
const quotaWarnRatio = 0.8

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns the status marker.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return RenderStatus("ok")
	case CheckWarn:
		return RenderStatus("warn")
	default:
		return RenderStatus("fail")
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Fix     string `json:"fix,omitempty"`

	status CheckStatus
}

func (c *HealthCheck) set(status CheckStatus, format string, args ...any) *HealthCheck {
	c.status = status
	c.Status = status.String()
	c.Message = fmt.Sprintf(format, args...)
	return c
}

// Render returns a formatted line, with the fix on a second line.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s %s", c.status.Symbol(), RenderLabel(c.Name), ValueStyle.Render(c.Message))
	if c.status != CheckPass && c.Fix != "" {
		result += "\n" + DimStyle.Render("       -> "+c.Fix)
	}
	return result
}

// DoctorSummary counts check results.
type DoctorSummary struct {
	Passed  int  `json:"passed"`
	Warned  int  `json:"warned"`
	Failed  int  `json:"failed"`
	Healthy bool `json:"healthy"`
}

// DoctorData is the --json payload.
type DoctorData struct {
	Checks  []*HealthCheck `json:"checks"`
	Summary DoctorSummary  `json:"summary"`
}

// =============================================================================
// COMMAND
// =============================================================================

// HandleDoctor runs all checks and prints the results.
func HandleDoctor(args Args) error {
	cfg, cfgErr := LoadConfig(args)
	checks := runAllChecks(args, cfg, cfgErr)

	var summary DoctorSummary
	for _, check := range checks {
		switch check.status {
		case CheckPass:
			summary.Passed++
		case CheckWarn:
			summary.Warned++
		case CheckFail:
			summary.Failed++
		}
	}
	summary.Healthy = summary.Failed == 0

	var failure error
	if summary.Failed > 0 {
		failure = fmt.Errorf("%d health check(s) failed", summary.Failed)
	}

	if args.JSON {
		resp := NewJSONResponse("doctor", DoctorData{Checks: checks, Summary: summary})
		if failure != nil {
			msg := failure.Error()
			resp.Success = false
			resp.Error = &msg
		}
		if err := resp.Print(); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(stdout, TitleStyle.Render("querychat doctor"))
	for _, check := range checks {
		fmt.Fprintln(stdout, check.Render())
	}
	fmt.Fprintln(stdout, RenderSeparator(41))

	parts := []string{fmt.Sprintf("%d passed", summary.Passed)}
	if summary.Warned > 0 {
		parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d warning", summary.Warned)))
	}
	if summary.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", summary.Failed)))
	}
	fmt.Fprintln(stdout, strings.Join(parts, ", "))

	return failure
}

// runAllChecks runs every check. Checks after the first use the defaults
// when the configuration does not load.
func runAllChecks(args Args, cfg *config.Config, cfgErr error) []*HealthCheck {
	checks := []*HealthCheck{checkConfigValid(args, cfgErr)}
	if cfg == nil {
		cfg = config.Default()
		if args.Endpoint != "" {
			cfg.Backend.Endpoint = args.Endpoint
		}
	}

	return append(checks,
		checkEndpointConfigured(cfg),
		checkBackendReachable(cfg),
		checkHistoryStorage(cfg),
		checkDataDirWritable(cfg),
		checkExportDirWritable(cfg),
		checkClipboard(),
	)
}

// =============================================================================
// HEALTH CHECK FUNCTIONS
// =============================================================================

func checkConfigValid(args Args, cfgErr error) *HealthCheck {
	check := &HealthCheck{Name: "Config"}

	path, err := configFilePath(args)
	if err != nil {
		return check.set(CheckWarn, "Could not determine config path: %s", err)
	}
	if cfgErr != nil {
		check.Fix = "Fix the file or run: querychat config init --force"
		return check.set(CheckFail, "Config invalid: %s", cfgErr)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return check.set(CheckPass, "Using defaults (%s not found)", path)
	}
	return check.set(CheckPass, "Loaded %s", path)
}

func checkEndpointConfigured(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Endpoint"}
	if cfg.Backend.Endpoint == "" {
		check.Fix = "Run: querychat config set backend.endpoint URL (or querychat mock-server to try things out)"
		return check.set(CheckFail, "No backend endpoint configured")
	}
	return check.set(CheckPass, "%s", cfg.Backend.Endpoint)
}

func checkBackendReachable(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Backend"}
	if cfg.Backend.Endpoint == "" {
		return check.set(CheckWarn, "Skipped, no endpoint")
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	start := time.Now()
	if err := NewClient(cfg).Ping(ctx); err != nil {
		check.Fix = "Check that the backend is running and serves " + cfg.Backend.HealthPath
		return check.set(CheckFail, "Unreachable: %s", err)
	}
	return check.set(CheckPass, "Reachable in %s", time.Since(start).Round(time.Millisecond))
}

func checkHistoryStorage(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "History"}

	store, err := OpenStore(cfg)
	if err != nil {
		check.Fix = "Set storage.backend to " + strings.Join(storeBackends, " or ")
		return check.set(CheckFail, "Could not open %s store: %s", cfg.Storage.Backend, err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	conv, err := store.Load(ctx)
	if err != nil {
		check.Fix = "Run: querychat history clear --confirm"
		return check.set(CheckFail, "Could not read %s: %s", store.Path(), err)
	}

	var size int64
	if st, err := os.Stat(store.Path()); err == nil {
		size = st.Size()
	}
	quota := cfg.Storage.QuotaBytes
	if quota > 0 && float64(size) > float64(quota)*quotaWarnRatio {
		check.Fix = "Old messages will be dropped; raise storage.quota_bytes to keep more"
		return check.set(CheckWarn, "%s used of %s quota (%d messages)",
			humanize.Bytes(uint64(size)), humanize.Bytes(uint64(quota)), conv.Len())
	}
	return check.set(CheckPass, "%d messages, %s (%s)", conv.Len(), humanize.Bytes(uint64(size)), cfg.Storage.Backend)
}

func checkDataDirWritable(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Data directory"}
	dir, err := cfg.DataDir()
	if err != nil {
		return check.set(CheckFail, "Could not determine data directory: %s", err)
	}
	if err := writeTest(dir); err != nil {
		check.Fix = "Check permissions: chmod 755 " + dir
		return check.set(CheckFail, "%s", err)
	}
	return check.set(CheckPass, "%s is writable", dir)
}

func checkExportDirWritable(cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Export directory"}
	dir := cfg.Export.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := writeTest(dir); err != nil {
		check.Fix = "Run: querychat config set export.output_dir DIR"
		return check.set(CheckWarn, "%s", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return check.set(CheckPass, "%s is writable", abs)
}

func checkClipboard() *HealthCheck {
	check := &HealthCheck{Name: "Clipboard"}
	if clipboard.Unsupported {
		check.Fix = "Install xclip, xsel or wl-clipboard for /copy"
		return check.set(CheckWarn, "No clipboard tool found")
	}
	return check.set(CheckPass, "Available")
}

// writeTest creates dir if needed and writes and removes a probe file.
func writeTest(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create %s: %w", dir, err)
	}
	probe := filepath.Join(dir, ".querychat_write_test")
	if err := os.WriteFile(probe, []byte("test"), 0600); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	os.Remove(probe)
	return nil
}

// storeBackends lists the accepted storage.backend values.
var storeBackends = []string{storage.BackendFile, storage.BackendSQLite}
