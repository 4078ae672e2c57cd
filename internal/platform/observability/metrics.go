package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_messages_scanned_total",
		Help: "The total number of messages that went through the scan pipeline",
	}, []string{"trigger"})

	ScanTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_scan_targets_total",
		Help: "Scan targets by outcome (scanned, deduped, download_failed, classify_failed)",
	}, []string{"outcome"})

	ScanDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_scan_decisions_total",
		Help: "Summary decisions per message by action",
	}, []string{"action"})

	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "guard_scan_duration_seconds",
		Help:    "Duration of a full message scan",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	})

	ClassifierRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_classifier_requests_total",
		Help: "Classifier requests by endpoint and HTTP status",
	}, []string{"endpoint", "status"})

	ClassifierRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guard_classifier_request_duration_seconds",
		Help:    "Duration of classifier requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ClassifierTokenFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_classifier_token_fetches_total",
		Help: "Token fetches by kind (fetch, renew) and status",
	}, []string{"kind", "status"})

	ClassifierUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guard_classifier_up",
		Help: "1 when the last classifier stats check succeeded",
	})

	ClassifierTokenExpiry = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guard_classifier_token_expiry_timestamp_seconds",
		Help: "Unix time the cached classifier token expires, 0 when none is cached",
	})

	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_dedup_hits_total",
		Help: "Scan keys skipped because they were processed recently",
	})

	DedupEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guard_dedup_entries",
		Help: "Entries currently held by the in-memory dedup cache",
	})

	MediaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_media_rejections_total",
		Help: "Links or downloads rejected as non-media by reason",
	}, []string{"reason"})

	ReviewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_review_transitions_total",
		Help: "Moderator review transitions by event",
	}, []string{"event"})

	ReviewSideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_review_side_effect_failures_total",
		Help: "Failed best-effort review side effects by kind",
	}, []string{"kind"})

	CaseStoreWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guard_case_store_writes_total",
		Help: "Case store mutations by status",
	}, []string{"status"})

	CasesStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "guard_cases_stored",
		Help: "Flagged cases currently held by the case store",
	})
)
