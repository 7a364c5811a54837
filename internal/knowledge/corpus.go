// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile loads a corpus file, choosing the format by extension.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(f)
	case ".yaml", ".yml":
		return LoadYAML(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadCSV reads question,answer,category[,subcategory] rows. A header row is
// detected by its first cell and skipped. Rows missing a question or an
// answer are dropped.
func LoadCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var entries []Entry
	first := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv corpus: %w", err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(rec[0], "\ufeff")), "question") {
				continue
			}
		}
		if e, ok := entryFromRecord(rec); ok {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func entryFromRecord(rec []string) (Entry, bool) {
	field := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	e := Entry{
		Question:    field(0),
		Answer:      field(1),
		Category:    field(2),
		Subcategory: field(3),
	}
	return e, e.Question != "" && e.Answer != ""
}

// LoadYAML reads a YAML sequence of entries.
func LoadYAML(r io.Reader) ([]Entry, error) {
	var raw []Entry
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml corpus: %w", err)
	}

	entries := raw[:0]
	for _, e := range raw {
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		e.Category = strings.TrimSpace(e.Category)
		e.Subcategory = strings.TrimSpace(e.Subcategory)
		if e.Question != "" && e.Answer != "" {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// Summary describes a loaded corpus.
type Summary struct {
	Entries    int
	Categories map[string]int
}

// Summarize counts entries per category label.
func Summarize(entries []Entry) Summary {
	s := Summary{Entries: len(entries), Categories: make(map[string]int)}
	for _, e := range entries {
		s.Categories[e.Category]++
	}
	return s
}
