// webwibe - customer support chat router with knowledge search and human handoff.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/FenixFighter/WebWibe/internal/cli"

func main() {
	cli.Execute()
}
