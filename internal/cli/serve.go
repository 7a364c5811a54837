// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/server"
)

type serveFlags struct {
	host   string
	port   int
	corpus string
}

func newServeCommand(opts *Options) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat router HTTP API",
		Long: `Start the HTTP API: customer and agent messages, escalation and release,
agent login, knowledge search, answer evaluation, live events over SSE
and Prometheus metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
		Example: `  webwibe serve
  webwibe serve --port 9090 --corpus ./faq.csv
  webwibe serve --config ./webwibe.toml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(contextOf(cmd), opts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.host, "host", "", "listen host (overrides server.host)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.Flags().StringVar(&flags.corpus, "corpus", "", "knowledge corpus file (overrides knowledge.corpus_path)")
	return cmd
}

func runServe(parent context.Context, opts *Options, flags serveFlags) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if flags.host != "" {
		cfg.Server.Host = flags.host
	}
	if flags.port != 0 {
		if flags.port < 1 || flags.port > 65535 {
			return NewValidationError("port", "", "must be between 1 and 65535")
		}
		cfg.Server.Port = flags.port
	}
	if flags.corpus != "" {
		cfg.Knowledge.CorpusPath = flags.corpus
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.NewServer(cfg.Server, app.Router).
		WithLogger(logger).
		WithIndex(app.Index).
		WithEvaluator(app.Evaluator).
		WithDirectory(app.Directory).
		WithLedger(app.Ledger).
		WithTranscripts(app.Transcripts).
		WithHub(app.Hub)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return NewCommandError("serve", "listen", cfg.Server.Addr(), err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return NewCommandError("serve", "shutdown", "graceful shutdown failed", err)
	}
	if err := <-errCh; err != nil {
		return NewCommandError("serve", "listen", cfg.Server.Addr(), err)
	}
	logger.Info("server stopped", slog.String("stats", app.Router.Stats().Summary()))
	return nil
}
