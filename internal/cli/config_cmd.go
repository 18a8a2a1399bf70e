// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration management.
//
// Usage:
//
//	querychat config [show]
//	querychat config path
//	querychat config init [--force]
//	querychat config get KEY
//	querychat config set KEY VALUE
//	querychat config keys
//
// set edits the file only: environment overrides are never written back.

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/querychat/internal/config"
)

// HandleConfig dispatches the config subcommands.
func HandleConfig(args Args) error {
	parser := NewArgParser(args.Rest, "force")

	switch sub := strings.ToLower(parser.Subcommand()); sub {
	case "", "show":
		return configShow(args)
	case "path":
		return configPath(args)
	case "init":
		return configInit(args, parser.BoolFlag("force"))
	case "get":
		return configGet(args, parser.Positional(1))
	case "set":
		return configSet(args, parser.Positional(1), JoinPositionalArgs(parser, 2))
	case "keys":
		return configKeys(args)
	default:
		return NewValidationErrorWithExample("config subcommand", sub,
			"expected show, path, init, get, set or keys", "querychat config set backend.endpoint http://localhost:8787/query")
	}
}

// configFilePath returns the file config commands read and write: --config,
// an existing default file, or the default TOML path.
func configFilePath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	tomlPath, err := config.ConfigPathTOML()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, nil
	}
	if jsonPath, err := config.ConfigPathJSON(); err == nil {
		if _, err := os.Stat(jsonPath); err == nil {
			return jsonPath, nil
		}
	}
	return tomlPath, nil
}

// loadConfigFile reads a config file over the defaults without applying
// environment overrides. A missing file yields the defaults.
func loadConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if strings.HasSuffix(path, ".json") {
		return cfg, config.LoadJSON(cfg, path)
	}
	return cfg, config.LoadTOML(cfg, path)
}

// saveConfigFile writes cfg in the format implied by the extension.
func saveConfigFile(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

// =============================================================================
// SUBCOMMANDS
// =============================================================================

func configShow(args Args) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	if args.JSON {
		safe := cfg.Clone()
		for k := range safe.Backend.Headers {
			safe.Backend.Headers[k] = "[REDACTED]"
		}
		return NewJSONResponse("config show", safe).Print()
	}

	path, _ := configFilePath(args)
	fmt.Fprintln(stdout, TitleStyle.Render("querychat configuration"))
	fmt.Fprintln(stdout, RenderLabel("File:", 26)+DimStyle.Render(path))
	for _, key := range config.GetAllKeys() {
		val, err := cfg.Get(key)
		if err != nil {
			continue
		}
		shown := fmt.Sprint(val)
		if shown == "" {
			shown = DimStyle.Render("(not set)")
		}
		fmt.Fprintln(stdout, RenderLabel(key, 26)+ValueStyle.Render(shown))
	}
	if n := len(cfg.Backend.Headers); n > 0 {
		fmt.Fprintln(stdout, RenderLabel("backend.headers", 26)+DimStyle.Render(fmt.Sprintf("%d header(s), values hidden", n)))
	}
	return nil
}

func configPath(args Args) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	if args.JSON {
		_, statErr := os.Stat(path)
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": statErr == nil}).Print()
	}
	fmt.Fprintln(stdout, path)
	if _, err := os.Stat(path); os.IsNotExist(err) && !args.Quiet {
		StderrPrint("(not created yet; run: querychat config init)\n")
	}
	return nil
}

func configInit(args Args, force bool) error {
	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return NewCommandError("config", "init", path+" already exists; pass --force to overwrite", nil)
	}

	cfg := config.Default()
	if args.Endpoint != "" {
		cfg.Backend.Endpoint = args.Endpoint
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config init", map[string]string{"path": path}).Print()
	}
	if !args.Quiet {
		fmt.Fprintln(stdout, SuccessStyle.Render("Wrote")+" "+path)
	}
	return nil
}

func configGet(args Args, key string) error {
	if key == "" {
		return NewValidationErrorWithExample("key", "", "a key is required", "querychat config get backend.endpoint")
	}
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	val, err := cfg.Get(key)
	if err != nil {
		return &NotFoundError{Resource: "config key", ID: key}
	}

	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": val}).Print()
	}
	fmt.Fprintln(stdout, val)
	return nil
}

func configSet(args Args, key, value string) error {
	if key == "" {
		return NewValidationErrorWithExample("key", "", "a key and a value are required",
			"querychat config set ui.theme dark")
	}

	path, err := configFilePath(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return err
	}

	current, err := cfg.Get(key)
	if err != nil {
		return &NotFoundError{Resource: "config key", ID: key}
	}

	var newValue interface{} = value
	if _, isBool := current.(bool); isBool {
		b, err := ParseBoolString(value)
		if err != nil {
			return NewValidationError(key, value, "expected true or false")
		}
		newValue = b
	}
	if err := cfg.Set(key, newValue); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfigFile(cfg, path); err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": newValue, "path": path}).Print()
	}
	if !args.Quiet {
		fmt.Fprintf(stdout, "%s %s = %v\n", SuccessStyle.Render("Set"), key, newValue)
	}
	return nil
}

func configKeys(args Args) error {
	return OutputJSON(args.JSON, "config keys", func() (interface{}, error) {
		keys := config.GetAllKeys()
		if !args.JSON {
			for _, key := range keys {
				fmt.Fprintln(stdout, key)
			}
		}
		return keys, nil
	})
}
