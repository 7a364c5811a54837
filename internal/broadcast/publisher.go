// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package broadcast

import (
	"context"
	"errors"
	"log/slog"
)

// Publisher delivers messages on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
	Close() error
}

// =============================================================================
// FALLBACK
// =============================================================================

// FallbackPublisher stands in for the broker when none is configured.
type FallbackPublisher struct {
	log *slog.Logger
}

// NewFallback creates a FallbackPublisher.
func NewFallback(logger *slog.Logger) *FallbackPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackPublisher{log: logger}
}

func (p *FallbackPublisher) Publish(ctx context.Context, channel string, msg Message) error {
	p.log.Debug("skipped publish",
		slog.String("channel", channel),
		slog.String("type", string(msg.Type)),
		slog.String("conversation_id", msg.ConversationID),
	)
	return nil
}

func (p *FallbackPublisher) Close() error {
	return nil
}

// =============================================================================
// MULTI
// =============================================================================

// Multi publishes every message to each of its publishers in order. All
// publishers are attempted; their errors are joined.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, channel string, msg Message) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, channel, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
