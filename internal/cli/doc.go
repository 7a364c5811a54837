// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the webwibe command tree on cobra.
//
// # Commands
//
//   - serve: run the HTTP API until SIGINT or SIGTERM
//   - ask: route one question through the automated path, in process
//   - corpus check|import: parse a corpus file, load it into SQLite
//   - transcript list|export: read stored conversations
//   - agents list|hash-password|totp-secret: manage agent accounts
//   - config show|get|init|path: inspect and create the config file
//
// Every command accepts --config, --log-level and --json. With --json the
// result is printed as a JSONResponse envelope, errors included.
//
// # Wiring
//
// buildApp assembles the knowledge index, evaluator, agent directory,
// assignment ledger, transcript store, publishers and router from a
// config.Config. serve uses the persistent stores and the broker; ask runs
// the same router against in-memory stores.
//
// # Exit Codes
//
// ExitCode maps errors to process exit codes: 2 for bad input, 3 for
// configuration problems, 7 for missing resources and 1 otherwise.
package cli
