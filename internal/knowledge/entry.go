// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported corpus format")
	ErrEmptyCorpus       = errors.New("corpus contains no usable entries")
)

// Entry is a single knowledge record. Entries are never mutated once loaded.
type Entry struct {
	Question    string `json:"question" yaml:"question"`
	Answer      string `json:"answer" yaml:"answer"`
	Category    string `json:"category" yaml:"category"`
	Subcategory string `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
}

// Result pairs an entry with its score for one ranking call.
type Result struct {
	Entry Entry   `json:"entry"`
	Score float64 `json:"score"`
}

// Source provides the corpus at startup and on reload.
type Source interface {
	LoadKnowledgeCorpus(ctx context.Context) ([]Entry, error)
}

// FileSource loads the corpus from a CSV or YAML file on every call.
type FileSource struct {
	Path string
}

// LoadKnowledgeCorpus implements Source.
func (f FileSource) LoadKnowledgeCorpus(ctx context.Context) ([]Entry, error) {
	return LoadFile(f.Path)
}
