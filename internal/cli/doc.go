// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli implements the querychat command line.

# Commands

  - (none), tui: full-screen chat, started by main
  - ask: one question, printed styled on a terminal and tab-separated
    otherwise; --json prints the backend response, --export writes the table
  - chat: line REPL on peterh/liner with slash commands
  - history: list, show, info, export and clear the stored conversation
  - config: show, path, init, get, set and keys
  - doctor: endpoint, storage and export checks
  - mock-server: the fixture backend from package server

# Conventions

Handlers take the parsed Args and return an error; they never print errors
or exit. main prints the error with PrintError and exits with GetExitCode.
With --json every command writes exactly one JSONResponse to stdout.

Logging goes through the standard logger, which SetupLogging discards
unless --verbose is given.

# Usage

	args := cli.Parse()
	cli.SetupLogging(args)
	if err := cli.HandleAsk(args); err != nil {
		cli.PrintError(args.Command.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
*/
package cli
