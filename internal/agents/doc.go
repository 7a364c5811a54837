// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agents authenticates support agents and tracks who is online.
//
// Accounts come from configuration with bcrypt password hashes and an
// optional TOTP secret. A successful login issues an opaque session token
// with a sliding expiry; an agent counts as online while at least one of
// their sessions is live. Expired sessions are rejected on use and swept
// periodically.
package agents
