// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/knowledge"
)

func newCorpusCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect and import the knowledge corpus",
	}
	cmd.AddCommand(newCorpusCheckCommand(opts), newCorpusImportCommand(opts))
	return cmd
}

// CorpusReport describes a parsed corpus file.
type CorpusReport struct {
	Path       string         `json:"path"`
	Entries    int            `json:"entries"`
	Categories map[string]int `json:"categories"`
	Store      string         `json:"store,omitempty"`
}

func newCorpusCheckCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse a CSV or YAML corpus and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := readCorpus(args[0])
			if err != nil {
				return err
			}
			return opts.printResult(cmd.OutOrStdout(), "corpus check", report, func(w io.Writer) {
				renderCorpusReport(w, report)
			})
		},
	}
}

func newCorpusImportCommand(opts *Options) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the SQLite knowledge store with a corpus file",
		Long: `Parse a CSV or YAML corpus and replace the contents of the SQLite
knowledge store with it. The store is knowledge.store_path unless --store
is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if storePath == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				storePath = cfg.Knowledge.StorePath
			}
			if storePath == "" {
				return NewValidationErrorWithExample("store", "", "no store path configured",
					"webwibe corpus import faq.csv --store ./data/knowledge.db")
			}

			report, err := importCorpus(contextOf(cmd), args[0], storePath)
			if err != nil {
				return err
			}
			return opts.printResult(cmd.OutOrStdout(), "corpus import", report, func(w io.Writer) {
				renderCorpusReport(w, report)
				fmt.Fprintf(w, "%s imported into %s\n", RenderStatus("ok"), report.Store)
			})
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite store path (overrides knowledge.store_path)")
	return cmd
}

func readCorpus(path string) (CorpusReport, error) {
	entries, err := knowledge.LoadFile(path)
	if err != nil {
		return CorpusReport{}, NewCommandError("corpus", "parse", path, err)
	}
	if len(entries) == 0 {
		return CorpusReport{}, NewCommandError("corpus", "parse", path, knowledge.ErrEmptyCorpus)
	}
	sum := knowledge.Summarize(entries)
	return CorpusReport{Path: path, Entries: sum.Entries, Categories: sum.Categories}, nil
}

func importCorpus(ctx context.Context, path, storePath string) (CorpusReport, error) {
	entries, err := knowledge.LoadFile(path)
	if err != nil {
		return CorpusReport{}, NewCommandError("corpus", "parse", path, err)
	}
	if len(entries) == 0 {
		return CorpusReport{}, NewCommandError("corpus", "parse", path, knowledge.ErrEmptyCorpus)
	}

	store, err := knowledge.OpenSQLiteStore(storePath)
	if err != nil {
		return CorpusReport{}, NewCommandError("corpus", "import", storePath, err)
	}
	defer store.Close()

	if err := store.ReplaceAll(ctx, entries); err != nil {
		return CorpusReport{}, NewCommandError("corpus", "import", storePath, err)
	}
	n, err := store.Count(ctx)
	if err != nil {
		return CorpusReport{}, NewCommandError("corpus", "import", storePath, err)
	}

	sum := knowledge.Summarize(entries)
	return CorpusReport{Path: path, Entries: n, Categories: sum.Categories, Store: storePath}, nil
}

func renderCorpusReport(w io.Writer, r CorpusReport) {
	fmt.Fprintln(w, TitleStyle.Render("Knowledge corpus"))
	fmt.Fprintln(w, RenderField("File", r.Path))
	fmt.Fprintln(w, RenderField("Entries", r.Entries))
	fmt.Fprintln(w, RenderField("Categories", len(r.Categories)))

	names := make([]string, 0, len(r.Categories))
	for name := range r.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		label := name
		if label == "" {
			label = "(none)"
		}
		fmt.Fprintf(w, "  %s %d\n", RenderLabel(label), r.Categories[name])
	}
}
