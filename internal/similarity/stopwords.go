// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package similarity

// DefaultStopWords are excluded from the domain keyword set. The corpus is
// bilingual (Russian and English), so both lists are carried.
var DefaultStopWords = []string{
	// Russian
	"как", "что", "где", "когда", "почему", "зачем", "для", "чего",
	"это", "этот", "эта", "эти", "все", "вся", "всё", "можно",
	"нужно", "необходимо", "требуется", "получить", "сделать",
	// English
	"what", "when", "where", "which", "while", "with", "would", "could",
	"should", "have", "this", "that", "these", "those", "there", "their",
	"from", "into", "about", "your", "does", "will", "need", "want",
	"make", "how", "can", "the", "and", "for",
}
