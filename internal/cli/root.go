// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/config"
	"github.com/FenixFighter/WebWibe/internal/logging"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigPath string
	LogLevel   string
	JSON       bool
}

// NewRootCommand builds the webwibe command tree.
func NewRootCommand() *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:   "webwibe",
		Short: "Customer support chat router with knowledge search and human handoff",
		Long: `webwibe answers customer support chats from a knowledge base, scores
every automated answer and hands conversations to human agents when
customers ask for one.

Run "webwibe serve" to start the HTTP API, or "webwibe ask" to try the
automated path from the terminal.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("webwibe %s (commit %s, built %s)\n", Version, GitCommit, BuildDate))

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ~/.webwibe/config.toml)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	flags.BoolVar(&opts.JSON, "json", false, "print results as JSON")

	root.AddCommand(
		newServeCommand(opts),
		newAskCommand(opts),
		newCorpusCommand(opts),
		newTranscriptCommand(opts),
		newAgentsCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute runs the root command and exits with a code matching the error.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		if jsonMode, _ := root.PersistentFlags().GetBool("json"); jsonMode {
			_ = NewJSONErrorResponse(commandName(root, os.Args[1:]), err).Write(os.Stdout)
		} else {
			DisplayError(os.Stderr, err)
		}
		os.Exit(ExitCode(err))
	}
}

// commandName resolves the subcommand args select, for error envelopes.
func commandName(root *cobra.Command, args []string) string {
	cmd, _, err := root.Find(args)
	if err != nil || cmd == nil {
		return root.Name()
	}
	return cmd.CommandPath()
}

// loadConfig reads the config selected by --config and applies flag
// overrides.
func (o *Options) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.LoadFromPath(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &configError{err: err}
	}

	if o.LogLevel != "" {
		if _, err := logging.ParseLevel(o.LogLevel); err != nil {
			return nil, NewValidationErrorWithExample("log-level", o.LogLevel, err.Error(), "--log-level debug")
		}
		cfg.Logging.Level = o.LogLevel
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg.
func newLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, &configError{err: err}
	}
	return logger.With("version", Version), closer, nil
}

// printResult prints data as a JSON envelope in JSON mode, otherwise calls
// human to render it.
func (o *Options) printResult(w io.Writer, command string, data any, human func(io.Writer)) error {
	if o.JSON {
		return NewJSONResponse(command, data).Write(w)
	}
	human(w)
	return nil
}
