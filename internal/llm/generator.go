// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Generator turns a prompt into answer text.
type Generator interface {
	GenerateAnswer(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider     string        `toml:"provider"`
	BaseURL      string        `toml:"base_url"`
	APIKey       string        `toml:"api_key"`
	Model        string        `toml:"model"`
	MaxTokens    int           `toml:"max_tokens"`
	Temperature  float64       `toml:"temperature"`
	SystemPrompt string        `toml:"system_prompt"`
	Timeout      time.Duration `toml:"-"`
	// StaticAnswer is returned by the static provider.
	StaticAnswer string `toml:"static_answer"`
}

// DefaultSystemPrompt frames generated answers.
const DefaultSystemPrompt = "You are a customer support assistant for a retail bank. " +
	"Answer using the provided knowledge base entries. Be concise and specific. " +
	"If the entries do not cover the question, say so."

// New creates the provider named by cfg.Provider.
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		return NewOllamaProvider(cfg), nil
	case "static":
		return Static(cfg.StaticAnswer), nil
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

// Static always answers with the same text. An empty Static answers with
// ErrEmptyAnswer.
type Static string

func (s Static) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", transportError(err)
	}
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrEmptyAnswer
	}
	return string(s), nil
}

// Func adapts a function to Generator.
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) GenerateAnswer(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
