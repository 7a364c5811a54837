// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the service.
//
// # Key Functions
//
//   - KeyedMutex: mutual exclusion scoped to a string key (one per conversation)
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - Preview, TruncateRunes: UTF-8 safe truncation for notices and logs
//
// # Usage
//
//	unlock := locks.Lock(conversationID)
//	defer unlock()
//
//	err := util.AtomicWriteFile(path, data, 0600)
package util
