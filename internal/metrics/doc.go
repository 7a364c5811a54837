// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics declares the Prometheus collectors shared by the router,
// the knowledge index, the generator and the assignment ledger.
//
// Collectors are registered on the default registry at init time and are
// exported by the HTTP server at GET /metrics.
package metrics
