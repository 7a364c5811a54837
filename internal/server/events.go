// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FenixFighter/WebWibe/internal/agents"
	"github.com/FenixFighter/WebWibe/internal/broadcast"
	"github.com/FenixFighter/WebWibe/internal/router"
	"github.com/FenixFighter/WebWibe/internal/storage"
)

// HeartbeatInterval is how often an idle event stream sends a comment line.
var HeartbeatInterval = 15 * time.Second

// handleEvents handles GET /v1/events, a server-sent event stream of
// broadcast deliveries.
//
// Customers must pass conversation_id and receive only that conversation.
// Support agents may omit it and see everything, including the
// support.activity feed. An optional comma-separated channels parameter
// narrows the stream further. An open agent stream keeps the agent's session
// alive on every heartbeat and ends once the session does.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	hub, dir := s.hub, s.directory
	s.mu.RUnlock()
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Event stream not configured")
		return
	}

	q := r.URL.Query()
	filter := broadcast.Filter{ConversationID: strings.TrimSpace(q.Get("conversation_id"))}
	if raw := q.Get("channels"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				filter.Channels = append(filter.Channels, c)
			}
		}
	}

	agentToken := ""
	if dir != nil {
		agentToken = supportToken(dir, r)
	}
	if filter.ConversationID == "" {
		if agentToken == "" {
			writeError(w, http.StatusUnauthorized, router.NoticeUnauthorized)
			return
		}
	} else if !storage.ValidID(filter.ConversationID) {
		writeError(w, http.StatusBadRequest, router.NoticeInvalidID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	// Streams outlive the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	deliveries, cancel := hub.Subscribe(filter, broadcast.DefaultBuffer)
	defer cancel()

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("event stream opened",
		slog.String("conversation_id", filter.ConversationID),
		slog.String("ip", GetClientIP(r)),
	)

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("event stream closed", slog.String("conversation_id", filter.ConversationID))
			return
		case <-heartbeat.C:
			if agentToken != "" {
				if err := dir.Touch(agentToken); err != nil {
					s.logger.Debug("event stream session ended", slog.String("ip", GetClientIP(r)))
					return
				}
			}
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := writeEvent(w, d); err != nil {
				s.logger.Warn("event encode failed", slog.Any("error", err))
				continue
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one delivery as an SSE frame. The event name is the
// message type and the id is the message id.
func writeEvent(w http.ResponseWriter, d broadcast.Delivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", d.Message.ID, d.Message.Type, data)
	return err
}

// supportToken returns the request's credential when it belongs to a support
// agent, else "".
func supportToken(dir *agents.Directory, r *http.Request) string {
	token := BearerToken(r)
	if token == "" {
		// EventSource cannot set headers.
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return ""
	}
	ident, err := dir.VerifyAgentCredential(token)
	if err != nil || ident.Role != agents.RoleSupport {
		return ""
	}
	return token
}
