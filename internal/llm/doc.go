// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm provides answer generators backed by language models.
//
// Providers:
//   - openai: any OpenAI compatible chat completions endpoint (go-openai)
//   - ollama: a local Ollama server over its /api/chat endpoint
//   - static: a fixed answer, for offline runs and tests
//
// Provider failures are returned as *ClientError so callers can tell a
// timeout from an unreachable server without string matching.
package llm
