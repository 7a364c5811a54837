// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/config"
	"github.com/FenixFighter/WebWibe/internal/evaluator"
	"github.com/FenixFighter/WebWibe/internal/knowledge"
	"github.com/FenixFighter/WebWibe/internal/ledger"
	"github.com/FenixFighter/WebWibe/internal/llm"
	"github.com/FenixFighter/WebWibe/internal/router"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// App holds the wired collaborators of a running router.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Index       *knowledge.Index
	Evaluator   *evaluator.Evaluator
	Directory   *agents.Directory
	Ledger      *ledger.Ledger
	Transcripts storage.Store
	Hub         *broadcast.Hub
	Publisher   broadcast.Publisher
	Generator   llm.Generator
	Router      *router.Router

	closers []func() error
}

// appOptions tune buildApp for one command.
type appOptions struct {
	// Ephemeral keeps transcripts and assignments in memory and skips the
	// broker, the watcher and the hub.
	Ephemeral bool
	// Generator overrides cfg.Generator.
	Generator llm.Generator
}

// buildApp wires every component from cfg. Background work started here
// stops when ctx is cancelled; Close releases the rest.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if err := app.loadKnowledge(ctx, opts.Ephemeral); err != nil {
		return nil, err
	}

	app.Evaluator = evaluator.New(cfg.Evaluator)

	app.Directory, err = agents.NewDirectory(cfg.Agents.Accounts,
		agents.WithSessionTTL(cfg.Agents.SessionTTL),
		agents.WithLogger(logger),
	)
	if err != nil {
		return nil, &configError{err: fmt.Errorf("agents: %w", err)}
	}
	if !opts.Ephemeral {
		go app.Directory.Run(ctx, cfg.Agents.SweepInterval)
	}

	if err := app.openLedger(opts.Ephemeral); err != nil {
		return nil, err
	}
	if err := app.openTranscripts(opts.Ephemeral); err != nil {
		return nil, err
	}
	app.connectPublisher(ctx, opts.Ephemeral)

	app.Generator = opts.Generator
	if app.Generator == nil {
		app.Generator, err = llm.New(cfg.Generator)
		if err != nil {
			return nil, &configError{err: err}
		}
	}

	app.Router, err = router.New(router.Deps{
		Ledger:      app.Ledger,
		Index:       app.Index,
		Generator:   app.Generator,
		Evaluator:   app.Evaluator,
		Verifier:    app.Directory,
		Transcripts: app.Transcripts,
		Publisher:   app.Publisher,
	}, router.WithPolicy(cfg.Routing.Policy()), router.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return app, nil
}

// loadKnowledge builds the index. With a store path the corpus file, if
// any, is imported into SQLite first and the index reads from the store.
func (a *App) loadKnowledge(ctx context.Context, ephemeral bool) error {
	kc := a.Config.Knowledge
	ixCfg := kc.IndexConfig()

	var store *knowledge.SQLiteStore
	switch {
	case kc.StorePath != "":
		s, err := knowledge.OpenSQLiteStore(kc.StorePath)
		if err != nil {
			return NewCommandError("knowledge", "open store", kc.StorePath, err)
		}
		store = s
		a.closers = append(a.closers, s.Close)

		if kc.CorpusPath != "" {
			entries, err := knowledge.LoadFile(kc.CorpusPath)
			if err != nil {
				return NewCommandError("knowledge", "load", kc.CorpusPath, err)
			}
			if err := s.ReplaceAll(ctx, entries); err != nil {
				return NewCommandError("knowledge", "import", kc.StorePath, err)
			}
		}
		ix, err := knowledge.Load(ctx, ixCfg, s, a.Logger)
		if err != nil {
			return err
		}
		a.Index = ix

	case kc.CorpusPath != "":
		ix, err := knowledge.Load(ctx, ixCfg, knowledge.FileSource{Path: kc.CorpusPath}, a.Logger)
		if err != nil {
			return NewCommandError("knowledge", "load", kc.CorpusPath, err)
		}
		a.Index = ix

	default:
		a.Logger.Warn("no knowledge corpus configured; every search will be empty")
		a.Index = knowledge.NewIndex(ixCfg, nil, a.Logger)
	}

	a.Logger.Info("knowledge loaded",
		slog.Int("entries", a.Index.Len()),
		slog.Int("categories", len(a.Index.Categories())),
	)

	if kc.Watch && kc.CorpusPath != "" && !ephemeral {
		w, err := knowledge.NewWatcher(kc.CorpusPath, a.Index, store, kc.Debounce, a.Logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Close()
			return err
		}
		a.closers = append(a.closers, w.Close)
	}
	return nil
}

func (a *App) openLedger(ephemeral bool) error {
	var store ledger.Store = ledger.NewMemoryStore()
	if path := a.Config.Storage.LedgerPath; path != "" && !ephemeral {
		s, err := ledger.OpenSQLiteStore(path)
		if err != nil {
			return NewCommandError("ledger", "open", path, err)
		}
		store = s
	}
	a.closers = append(a.closers, store.Close)
	a.Ledger = ledger.New(store, a.Directory,
		ledger.WithRole(agents.RoleSupport),
		ledger.WithLogger(a.Logger),
	)
	return nil
}

func (a *App) openTranscripts(ephemeral bool) error {
	dir := a.Config.Storage.TranscriptDir
	if dir == "" || ephemeral {
		if !ephemeral {
			a.Logger.Warn("storage.transcript_dir not set; transcripts are kept in memory")
		}
		a.Transcripts = storage.NewMemoryStore()
		return nil
	}
	fs, err := storage.NewFileStore(dir)
	if err != nil {
		return NewCommandError("storage", "open", dir, err)
	}
	a.Transcripts = fs
	return nil
}

// connectPublisher fans messages out to the in-process hub and, when a
// broker is configured and reachable, to RabbitMQ.
func (a *App) connectPublisher(ctx context.Context, ephemeral bool) {
	if ephemeral {
		a.Publisher = broadcast.NewFallback(a.Logger)
		return
	}

	a.Hub = broadcast.NewHub(a.Logger)
	a.closers = append(a.closers, a.Hub.Close)

	bc := a.Config.Broker
	if bc.URL == "" {
		a.Publisher = broadcast.Multi{a.Hub, broadcast.NewFallback(a.Logger)}
		return
	}

	conn, err := broadcast.DialWithRetry(ctx, broadcast.ConnectionOptions{
		URL:           bc.URL,
		RetryAttempts: bc.RetryAttempts,
		Delay:         time.Second,
		Logger:        a.Logger,
	})
	if err == nil {
		var pub *broadcast.AMQPPublisher
		if pub, err = broadcast.NewAMQPPublisher(conn, bc.Exchange, bc.Producer, a.Logger); err == nil {
			a.closers = append(a.closers, pub.Close)
			a.Publisher = broadcast.Multi{a.Hub, pub}
			a.Logger.Info("broker connected", slog.String("exchange", bc.Exchange))
			return
		}
	}

	a.Logger.Warn("broker unavailable; publishing to local subscribers only", slog.String("error", err.Error()))
	a.Publisher = broadcast.Multi{a.Hub, broadcast.NewFallback(a.Logger)}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
