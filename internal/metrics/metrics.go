package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SamplesInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_samples_inserted_total",
			Help: "Raw samples stored by ingestion",
		},
	)
	SamplesDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_samples_deduped_total",
			Help: "Raw samples skipped because their sample key was already stored",
		},
	)
	RollupsRecomputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_rollups_recomputed_total",
			Help: "Daily rollups rebuilt from raw samples",
		},
	)
	RollupsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "healthsync_rollups_deleted_total",
			Help: "Daily rollups removed because their day had no raw samples left",
		},
	)
	IntentUpserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_write_intent_upserts_total",
			Help: "Write intent upserts, by whether the intent was created",
		},
		[]string{"created"},
	)
	IntentAcks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "healthsync_write_intent_acks_total",
			Help: "Write intent acknowledgements, by reported status",
		},
		[]string{"status"},
	)
)
