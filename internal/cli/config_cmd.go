// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/config"
)

func newConfigCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and initialize configuration",
	}
	cmd.AddCommand(
		newConfigShowCommand(opts),
		newConfigGetCommand(opts),
		newConfigInitCommand(opts),
		newConfigPathCommand(opts),
	)
	return cmd
}

func newConfigShowCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			var redacted any
			if err := json.Unmarshal([]byte(cfg.String()), &redacted); err != nil {
				return err
			}
			return opts.printResult(cmd.OutOrStdout(), "config show", redacted, func(w io.Writer) {
				fmt.Fprintln(w, cfg.String())
			})
		},
	}
}

func newConfigGetCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one setting by its dotted key",
		Example: "  webwibe config get routing.low_quality_threshold",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return NewValidationError("key", args[0], err.Error())
			}
			if args[0] == "generator.api_key" && v != "" {
				v = "[REDACTED]"
			}
			return opts.printResult(cmd.OutOrStdout(), "config get",
				map[string]any{"key": args[0], "value": v},
				func(w io.Writer) { fmt.Fprintln(w, v) })
		},
	}
}

func newConfigInitCommand(opts *Options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration to --config, or to
~/.webwibe/config.toml when no path is given. An existing file is kept
unless --force is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return NewCommandError("config", "init", path+" already exists (use --force to overwrite)", nil)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return NewCommandError("config", "init", "could not write config", err)
			}
			return opts.printResult(cmd.OutOrStdout(), "config init", map[string]string{"path": path}, func(w io.Writer) {
				fmt.Fprintf(w, "%s wrote %s\n", RenderStatus("ok"), path)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigPathCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.configFile()
			if err != nil {
				return err
			}
			_, statErr := os.Stat(path)
			exists := statErr == nil
			return opts.printResult(cmd.OutOrStdout(), "config path",
				map[string]any{"path": path, "exists": exists},
				func(w io.Writer) {
					if exists {
						fmt.Fprintln(w, path)
						return
					}
					fmt.Fprintf(w, "%s %s\n", path, DimStyle.Render("(not created; using defaults)"))
				})
		},
	}
}

// configFile is --config or the default location.
func (o *Options) configFile() (string, error) {
	if o.ConfigPath != "" {
		return o.ConfigPath, nil
	}
	path, err := config.ConfigPathTOML()
	if err != nil {
		return "", &configError{err: err}
	}
	return path, nil
}
