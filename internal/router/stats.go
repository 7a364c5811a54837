// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"sync"
)

// Stats tracks cumulative routing counters for /stats and the CLI.
// All fields are safe for concurrent access through the methods.
type Stats struct {
	mu sync.RWMutex

	Messages          int `json:"messages"`
	Automated         int `json:"automated"`
	HumanAttached     int `json:"human_attached"`
	AgentRelays       int `json:"agent_relays"`
	Rejected          int `json:"rejected"`
	Discarded         int `json:"discarded"`
	Escalations       int `json:"escalations"`
	FailedEscalations int `json:"failed_escalations"`
	Releases          int `json:"releases"`
	GeneratorFailures int `json:"generator_failures"`
	// ScoreTotal is the sum of all automated answer scores.
	ScoreTotal int `json:"score_total"`
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordPath(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages++
	switch p {
	case PathAutomated:
		s.Automated++
	case PathHumanAttached:
		s.HumanAttached++
	case PathAgentRelay:
		s.AgentRelays++
	case PathRejected:
		s.Rejected++
	case PathDiscarded:
		s.Discarded++
	case PathEscalated:
		s.Escalations++
	}
}

func (s *Stats) recordScore(score int) {
	s.mu.Lock()
	s.ScoreTotal += score
	s.mu.Unlock()
}

func (s *Stats) recordEscalation(ok bool) {
	s.mu.Lock()
	if ok {
		s.Escalations++
	} else {
		s.FailedEscalations++
	}
	s.mu.Unlock()
}

func (s *Stats) recordRelease() {
	s.mu.Lock()
	s.Releases++
	s.mu.Unlock()
}

func (s *Stats) recordGeneratorFailure() {
	s.mu.Lock()
	s.GeneratorFailures++
	s.mu.Unlock()
}

// AverageScore returns the mean quality of automated answers, or 0.
func (s *Stats) AverageScore() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Automated == 0 {
		return 0
	}
	return float64(s.ScoreTotal) / float64(s.Automated)
}

// Summary returns a one-line summary.
func (s *Stats) Summary() string {
	snap := s.Snapshot()
	if snap.Messages == 0 {
		return "No messages routed yet"
	}
	return fmt.Sprintf(
		"Router: %d messages (%d automated, %d human attached, %d agent) | %d escalations, %d failed | avg quality %.0f",
		snap.Messages, snap.Automated, snap.HumanAttached, snap.AgentRelays,
		snap.Escalations, snap.FailedEscalations, s.AverageScore(),
	)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Messages:          s.Messages,
		Automated:         s.Automated,
		HumanAttached:     s.HumanAttached,
		AgentRelays:       s.AgentRelays,
		Rejected:          s.Rejected,
		Discarded:         s.Discarded,
		Escalations:       s.Escalations,
		FailedEscalations: s.FailedEscalations,
		Releases:          s.Releases,
		GeneratorFailures: s.GeneratorFailures,
		ScoreTotal:        s.ScoreTotal,
	}
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Messages, s.Automated, s.HumanAttached, s.AgentRelays = 0, 0, 0, 0
	s.Rejected, s.Discarded, s.Escalations, s.FailedEscalations = 0, 0, 0, 0
	s.Releases, s.GeneratorFailures, s.ScoreTotal = 0, 0, 0
}
