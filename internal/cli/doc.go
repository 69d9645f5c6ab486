// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the docqa command line.
//
// # Commands
//
//	docqa                      full-screen chat (ui/chat)
//	docqa ask QUESTION         one question, answer on stdout
//	docqa chat                 line-mode chat with slash commands
//	docqa docs ...             list, upload, remove, clear or watch documents
//	docqa history ...          browse, export and delete archived sessions
//	docqa config ...           inspect the effective configuration
//	docqa version
//
// Commands that talk to the answer service share an App, which owns the
// backend client, the session manager and the optional archive. Closing
// the App ends the current session, so the service is told to drop its
// per-session state and a non-empty transcript is archived.
//
// # Errors
//
// Handlers return errors instead of exiting. Run prints the error, as JSON
// with --json, and maps it to an exit code with GetExitCode:
//
//	2  bad arguments
//	3  bad configuration
//	5  answer service unreachable
//	7  document, session or key not found
//	8  timeout
//	130 interrupted
//
// # Usage
//
//	args, err := cli.Parse(os.Args[1:])
//	if err != nil {
//		cli.DisplayError(err, false)
//		os.Exit(cli.GetExitCode(err))
//	}
//	os.Exit(cli.Run(context.Background(), args))
package cli
