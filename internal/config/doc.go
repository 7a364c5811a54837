// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for webwibe.
//
// Configuration is TOML, layered over built-in defaults, with environment
// variable overrides and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (WEBWIBE_*)
//   - --config path, or ~/.webwibe/config.toml
//   - Built-in defaults
//
// # Sections
//
//   - server: listener, CORS, rate limiting
//   - logging: slog level, format, output
//   - knowledge: corpus file, SQLite store, watcher, scorer weights
//   - evaluator: answer quality weights and marker phrases
//   - routing: escalation policy, generator timeout, suggestions
//   - generator: answer generation provider
//   - broker: RabbitMQ fan-out
//   - storage: transcript directory, assignment ledger database
//   - agents: support accounts and session lifetime
//
// # Usage
//
//	cfg, err := config.LoadFromPath(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ix := knowledge.NewIndex(cfg.Knowledge.IndexConfig(), entries, logger)
package config
