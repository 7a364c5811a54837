// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides what happens to each chat message.
//
// A customer message is echoed to the conversation and, unless a support
// agent holds the conversation, answered automatically: the knowledge index
// supplies context, the generator writes the answer and the evaluator scores
// it. An agent message is relayed verbatim and attaches the agent to the
// conversation if nobody holds it.
//
// # Key Types
//
//   - Router: the per-message state machine
//   - Policy: escalation and generation tuning
//   - Path: which branch a message took
//   - Stats: cumulative counters
//
// # Concurrency
//
// Messages on one conversation are serialized with a keyed mutex. The lock
// is released while the generator runs and re-taken before the answer is
// emitted; if an agent attached in the meantime the answer is discarded.
//
// # Usage
//
//	r, err := router.New(router.Deps{...}, router.WithPolicy(cfg.Routing.Policy()))
//	out, err := r.HandleMessage(ctx, router.Inbound{Content: "How do I reset my password?"})
//	switch out.Path {
//	case router.PathAutomated:
//	    // out.Reply carries the answer and its rating
//	case router.PathHumanAttached:
//	    // an agent will respond
//	}
package router
