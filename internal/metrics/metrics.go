// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "webwibe"

var (
	// RouterMessages counts inbound messages by handling path.
	RouterMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "messages_total",
		Help:      "Inbound messages by handling path (automated, human_attached, agent_relay, rejected).",
	}, []string{"path"})

	// RouterEscalations counts escalation attempts by trigger and result.
	RouterEscalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "escalations_total",
		Help:      "Escalation attempts by trigger (explicit, needs_human, low_quality) and result.",
	}, []string{"trigger", "result"})

	// RouterDiscardedAnswers counts automated answers dropped because a human
	// attached while the generator was running.
	RouterDiscardedAnswers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "discarded_answers_total",
		Help:      "Automated answers discarded after a human claimed the conversation mid-flight.",
	})

	GeneratorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "latency_seconds",
		Help:      "Generator call latency, including failed calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
	})

	// GeneratorFailures counts absorbed generator failures by reason
	// (timeout, error, empty).
	GeneratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generator",
		Name:      "failures_total",
		Help:      "Generator failures replaced by the fallback answer.",
	}, []string{"reason"})

	KnowledgeSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "knowledge",
		Name:      "search_total",
		Help:      "Knowledge searches by the stage that produced the result.",
	}, []string{"stage"})

	KnowledgeEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "knowledge",
		Name:      "entries",
		Help:      "Entries currently held by the knowledge index.",
	})

	EvaluatorScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "evaluator",
		Name:      "score",
		Help:      "Quality score of automated answers.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	LedgerActiveAssignments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "active_assignments",
		Help:      "Conversations currently attached to a human agent.",
	})
)
