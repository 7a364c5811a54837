// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/storage"
)

func newTranscriptCommand(opts *Options) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:     "transcript",
		Aliases: []string{"transcripts"},
		Short:   "List and export stored conversation transcripts",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "transcript directory (overrides storage.transcript_dir)")

	openStore := func() (*storage.FileStore, error) {
		if dir == "" {
			cfg, err := opts.loadConfig()
			if err != nil {
				return nil, err
			}
			dir = cfg.Storage.TranscriptDir
		}
		if dir == "" {
			return nil, NewValidationErrorWithExample("dir", "", "no transcript directory configured",
				"webwibe transcript list --dir ./data/transcripts")
		}
		return storage.NewFileStore(dir)
	}

	cmd.AddCommand(
		newTranscriptListCommand(opts, openStore),
		newTranscriptExportCommand(opts, openStore),
	)
	return cmd
}

func newTranscriptListCommand(opts *Options, openStore func() (*storage.FileStore, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversations, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			metas, err := store.ListConversations(contextOf(cmd))
			if err != nil {
				return NewCommandError("transcript", "list", "could not read transcripts", err)
			}
			return opts.printResult(cmd.OutOrStdout(), "transcript list", metas, func(w io.Writer) {
				fmt.Fprintln(w, storage.FormatList(metas))
			})
		},
	}
}

func newTranscriptExportCommand(opts *Options, openStore func() (*storage.FileStore, error)) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <conversation-id>",
		Short: "Export one conversation as JSON, YAML or Markdown",
		Example: `  webwibe transcript export 6f1c2d --format markdown
  webwibe transcript export 6f1c2d --format yaml -o chat.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			if !storage.ValidID(id) {
				return NewValidationError("conversation id", id, "only letters, digits, '-' and '_' are allowed")
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			conv, err := store.Load(contextOf(cmd), id)
			if err != nil {
				return err
			}

			data, err := exportConversation(conv, format)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0600); err != nil {
				return NewCommandError("transcript", "export", output, err)
			}
			return opts.printResult(cmd.OutOrStdout(), "transcript export",
				map[string]string{"conversation_id": id, "format": format, "path": output},
				func(w io.Writer) {
					fmt.Fprintf(w, "%s exported %s to %s\n", RenderStatus("ok"), id, output)
				})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: json, yaml or markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func exportConversation(conv *storage.Conversation, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return conv.ExportJSON()
	case "yaml", "yml":
		return conv.ExportYAML()
	case "markdown", "md":
		return []byte(conv.ExportMarkdown()), nil
	default:
		return nil, NewValidationErrorWithExample("format", format, "unsupported export format", "--format markdown")
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
