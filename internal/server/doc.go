// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the support router over HTTP.
//
// # Endpoints
//
//   - POST /v1/messages                        - customer or agent message
//   - POST /v1/conversations/join              - open or resume, with transcript
//   - POST /v1/conversations/{id}/escalate     - hand a conversation to an agent
//   - POST /v1/conversations/{id}/release      - return it to automated answers
//   - GET  /v1/conversations                   - conversation list (agent)
//   - GET  /v1/conversations/{id}/messages     - transcript (agent)
//   - GET  /v1/conversations/{id}/assignments  - assignment history (agent)
//   - GET  /v1/agents/me/assignments           - caller's active assignments
//   - POST /v1/agents/login, /v1/agents/logout - agent sessions
//   - GET  /v1/knowledge/search                - knowledge lookup
//   - GET  /v1/categories                      - category hints
//   - POST /v1/evaluate                        - score a question/answer pair
//   - GET  /v1/events                          - server-sent event stream
//   - GET  /health, /stats, /metrics
//
// Agents authenticate with "Authorization: Bearer <session token>" obtained
// from the login endpoint.
//
// # Middleware
//
// Requests pass through recovery, security headers, access logging, CORS and
// a per-IP token bucket, in that order. Bodies are limited to 1 MiB.
//
// # Usage
//
//	srv := server.NewServer(cfg.Server, rt).
//		WithIndex(ix).
//		WithDirectory(dir).
//		WithHub(hub)
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
