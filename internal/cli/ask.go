// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FenixFighter/WebWibe/internal/llm"
	"github.com/FenixFighter/WebWibe/internal/router"
)

type askFlags struct {
	category string
	corpus   string
	answer   string
}

func newAskCommand(opts *Options) *cobra.Command {
	var flags askFlags

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question through the automated answer path",
		Long: `Route a single customer question through knowledge search, answer
generation and quality scoring, then print the result. Nothing is
persisted and no broker is contacted.`,
		Example: `  webwibe ask "How do I reset my card PIN?"
  webwibe ask "What is the transfer limit?" --category transfers
  webwibe ask "Hello" --answer "Hi! How can I help?" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return NewValidationError("question", "", "must not be empty")
			}
			return runAsk(contextOf(cmd), cmd.OutOrStdout(), opts, flags, question)
		},
	}

	cmd.Flags().StringVar(&flags.category, "category", "", "pin the knowledge search to a category")
	cmd.Flags().StringVar(&flags.corpus, "corpus", "", "knowledge corpus file (overrides knowledge.corpus_path)")
	cmd.Flags().StringVar(&flags.answer, "answer", "", "use this fixed answer instead of the configured generator")
	return cmd
}

func runAsk(ctx context.Context, w io.Writer, opts *Options, flags askFlags, question string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if flags.corpus != "" {
		cfg.Knowledge.CorpusPath = flags.corpus
		cfg.Knowledge.StorePath = ""
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	appOpts := appOptions{Ephemeral: true}
	if flags.answer != "" {
		appOpts.Generator = llm.Static(flags.answer)
	}
	app, err := buildApp(ctx, cfg, logger, appOpts)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := app.Router.HandleMessage(ctx, router.Inbound{
		Content:  question,
		Category: flags.category,
	})
	if err != nil {
		return NewCommandError("ask", "route", "message rejected", err)
	}

	return opts.printResult(w, "ask", out, func(w io.Writer) {
		renderOutcome(w, question, out)
	})
}

func renderOutcome(w io.Writer, question string, out router.Outcome) {
	fmt.Fprintln(w, TitleStyle.Render("webwibe ask"))
	fmt.Fprintln(w, RenderField("Question", question))
	fmt.Fprintln(w, RenderField("Path", out.Path))
	if out.Stage != "" {
		fmt.Fprintln(w, RenderField("Search", out.Stage))
	}

	if out.Reply != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, AnswerStyle.Render(WrapText(out.Reply.Content, GetTerminalWidth()-4)))
	}

	if out.Quality != nil {
		q := out.Quality
		fmt.Fprintln(w, SectionStyle.Render("Quality"))
		fmt.Fprintln(w, RenderLabel("Score")+ScoreStyle(q.Score).Render(fmt.Sprintf("%d/100", q.Score)))
		fmt.Fprintln(w, RenderField("Verdict", q.Explanation))
	}

	if out.Reply != nil && len(out.Reply.Suggestions) > 0 {
		fmt.Fprintln(w, SectionStyle.Render("Related questions"))
		for _, s := range out.Reply.Suggestions {
			fmt.Fprintln(w, DimStyle.Render("  - ")+s)
		}
	}

	if out.Assignment != nil {
		fmt.Fprintln(w, SectionStyle.Render("Escalation"))
		fmt.Fprintln(w, RenderField("Agent", out.Assignment.AgentID))
	}
}
