package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecodeFailures counts result items that could not be decoded at all.
	DecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_record_decode_failures_total",
			Help: "Total number of result items skipped because they were malformed",
		},
	)

	// DecodedRecords counts records produced by DecodeItems.
	DecodedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_decoded_records_total",
			Help: "Total number of records decoded from result pages",
		},
	)
)
