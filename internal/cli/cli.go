// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line argument parsing for querychat.
//
// Global flags are accepted anywhere on the command line. Everything else
// is handed to the selected command, which parses it with an ArgParser.

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information, overridden at build time via -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command identifies the top-level command to run.
type Command int

const (
	// CmdTUI starts the full-screen chat (the default).
	CmdTUI Command = iota
	// CmdAsk sends a single question and prints the answer.
	CmdAsk
	// CmdChat starts the line-oriented REPL.
	CmdChat
	// CmdHistory inspects the stored conversation.
	CmdHistory
	// CmdConfig manages the configuration file.
	CmdConfig
	// CmdDoctor checks the local setup.
	CmdDoctor
	// CmdMockServer runs the local fixture backend.
	CmdMockServer
	// CmdVersion prints version information.
	CmdVersion
	// CmdHelp prints usage.
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:        "tui",
	CmdAsk:        "ask",
	CmdChat:       "chat",
	CmdHistory:    "history",
	CmdConfig:     "config",
	CmdDoctor:     "doctor",
	CmdMockServer: "mock-server",
	CmdVersion:    "version",
	CmdHelp:       "help",
}

// String returns the command name as typed on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// Args holds the parsed command line.
type Args struct {
	Command Command

	// Global flags
	Endpoint   string
	ConfigPath string
	Quiet      bool
	Verbose    bool
	JSON       bool

	// Rest holds the arguments after the command name, global flags removed.
	Rest []string

	// Unknown is set when the command name was not recognized.
	Unknown string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `querychat %s - ask your data questions from the terminal

Usage:
  querychat [flags] [command] [args]

Commands:
  (none), tui                 Full-screen chat
  ask QUESTION                Ask one question and print the answer
      --export FILE           Write a table answer to FILE (.xlsx or .csv)
      --save                  Append the exchange to the history
  chat                        Line-oriented chat with input history
  history [list]              List the stored conversation
      --limit N               Show only the last N messages
  history show N              Print message #N in full
  history info                Show where the history is stored
  history export [FILE]       Export the history (--format xlsx|csv|md|json)
  history clear --confirm     Delete the stored history
  config [show]               Show the effective configuration
  config path                 Print the configuration file path
  config init [--force]       Write a default configuration file
  config get KEY              Print one setting
  config set KEY VALUE        Change one setting
  config keys                 List setting names
  doctor                      Check endpoint, storage and export setup
  mock-server                 Run a local fixture backend
      --port N                Port to listen on (default 8787)
      --latency DURATION      Delay every answer, e.g. 1.5s
  version                     Print version information
  help                        Show this help

Flags:
  --endpoint URL              Query backend URL (overrides the config)
  --config PATH               Use this configuration file
  -q, --quiet                 Only print results
  -v, --verbose               Log requests to stderr
  --json                      Machine-readable output

Environment:
  QUERYCHAT_ENDPOINT, QUERYCHAT_TIMEOUT, QUERYCHAT_STORAGE,
  QUERYCHAT_DATA_DIR, QUERYCHAT_THEME, QUERYCHAT_CONFIG_DIR, NO_COLOR
`

// PrintUsage prints the usage text.
func PrintUsage() {
	fmt.Fprintf(stdout, usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Fprintf(stdout, "querychat %s\n", Version)
	fmt.Fprintf(stdout, "  commit: %s\n", GitCommit)
	fmt.Fprintf(stdout, "  built:  %s\n", BuildDate)
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() Args {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses a command line without the program name.
func ParseArgs(argv []string) Args {
	args := Args{Command: CmdTUI}
	rest := parseGlobalFlags(&args, argv)

	if len(rest) == 0 {
		return args
	}

	name := strings.ToLower(rest[0])
	args.Rest = rest[1:]

	switch name {
	case "tui":
		args.Command = CmdTUI
	case "ask", "a":
		args.Command = CmdAsk
	case "chat", "repl":
		args.Command = CmdChat
	case "history", "hist":
		args.Command = CmdHistory
	case "config", "cfg":
		args.Command = CmdConfig
	case "doctor":
		args.Command = CmdDoctor
	case "mock-server", "mock", "serve":
		args.Command = CmdMockServer
	case "version", "--version", "-V":
		args.Command = CmdVersion
	case "help", "--help", "-h":
		args.Command = CmdHelp
	default:
		args.Command = CmdHelp
		args.Unknown = rest[0]
		args.Rest = nil
	}
	return args
}

// parseGlobalFlags removes global flags from argv into args and returns the
// remaining arguments in order. Scanning stops at "--".
func parseGlobalFlags(args *Args, argv []string) []string {
	rest := make([]string, 0, len(argv))

	for i := 0; i < len(argv); i++ {
		arg := argv[i]

		if arg == "--" {
			rest = append(rest, argv[i:]...)
			break
		}

		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--endpoint", "--config":
			if !hasValue {
				if i+1 >= len(argv) {
					rest = append(rest, arg)
					continue
				}
				i++
				value = argv[i]
			}
			if name == "--endpoint" {
				args.Endpoint = value
			} else {
				args.ConfigPath = value
			}
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		default:
			rest = append(rest, arg)
		}
	}
	return rest
}

// UnknownCommandError reports a command name that was not recognized.
func UnknownCommandError(name string) error {
	return &ValidationError{
		Field:   "command",
		Value:   name,
		Reason:  "unknown command",
		Example: "querychat help",
	}
}
