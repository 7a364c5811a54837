// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package broadcast fans user-visible messages out to connected clients.
//
// # Key Types
//
//   - Message: the payload every client receives
//   - Publisher: the fan-out contract used by the router
//   - Hub: in-process fan-out to live subscribers (the SSE stream)
//   - AMQPPublisher: RabbitMQ topic exchange publisher
//   - FallbackPublisher: logs and drops when no broker is configured
//   - Multi: publishes to several publishers at once
//
// Publishing is fire-and-forget for callers: a slow or failed client never
// blocks conversation handling.
package broadcast
