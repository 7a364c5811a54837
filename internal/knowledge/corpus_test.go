// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `question,answer,category,subcategory
"How do I block my card?","Open the app, then Cards > Block.",Cards,Security
How do I order a new card?,Visit a branch.,Cards
,missing question,Cards
missing answer,,Cards
`

func TestLoadCSV(t *testing.T) {
	entries, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{
		Question:    "How do I block my card?",
		Answer:      "Open the app, then Cards > Block.",
		Category:    "Cards",
		Subcategory: "Security",
	}, entries[0])
	assert.Equal(t, "", entries[1].Subcategory)
}

func TestLoadCSV_NoHeader(t *testing.T) {
	entries, err := LoadCSV(strings.NewReader("q1,a1,c1\nq2,a2,c2\n"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q1", entries[0].Question)
}

func TestLoadCSV_Malformed(t *testing.T) {
	_, err := LoadCSV(strings.NewReader("\"unterminated,answer,cat\n"))
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	doc := `
- question: How do I reset my password?
  answer: Use the forgot password link.
  category: Online banking
- question: "   "
  answer: dropped
`
	entries, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Online banking", entries[0].Category)
}

func TestLoadYAML_Empty(t *testing.T) {
	entries, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "faq.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(sampleCSV), 0644))
	entries, err := LoadFile(csvPath)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	ymlPath := filepath.Join(dir, "faq.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("- {question: q, answer: a, category: c}\n"), 0644))
	entries, err = LoadFile(ymlPath)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	txtPath := filepath.Join(dir, "faq.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("q"), 0644))
	_, err = LoadFile(txtPath)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(testCorpus())
	assert.Equal(t, 5, s.Entries)
	assert.Equal(t, 2, s.Categories["Cards"])
	assert.Equal(t, 1, s.Categories["Online banking"])
}
