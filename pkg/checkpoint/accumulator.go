package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/Sternrassler/catalog-harvester/pkg/sink"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrFlushFailed wraps every serialization or sink error raised by a flush.
var ErrFlushFailed = errors.New("flush failed")

var (
	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_flushes_total",
		Help: "Total flush attempts by result",
	}, []string{"result"})

	flushedRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvester_flushed_records_total",
		Help: "Total records written to durable storage",
	})

	bufferedRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvester_buffered_records",
		Help: "Records buffered in memory awaiting a flush",
	})
)

// FlushResult describes one FlushIfNonEmpty call.
type FlushResult struct {
	// Flushed is false when the buffer was empty and nothing was written.
	Flushed bool

	// Records is the number of records written.
	Records int

	// Destination is the generated name, URI what the sink returned.
	Destination string
	URI         string
}

// Accumulator buffers records between flushes. It is not safe for concurrent use.
type Accumulator struct {
	sink   sink.Writer
	namer  *Namer
	logger zerolog.Logger
	indent string
	encode func(v any, prefix, indent string) ([]byte, error)

	buffer  []catalog.Record
	flushes int
	written int
}

// New creates an Accumulator writing through w with names from namer.
func New(w sink.Writer, namer *Namer, logger zerolog.Logger) *Accumulator {
	if namer == nil {
		namer = NewNamer(DefaultPrefix, nil)
	}
	return &Accumulator{
		sink:   w,
		namer:  namer,
		logger: logger,
		indent: "    ",
		encode: json.MarshalIndent,
	}
}

// Append adds records to the buffer.
func (a *Accumulator) Append(records []catalog.Record) {
	a.buffer = append(a.buffer, records...)
	bufferedRecords.Set(float64(len(a.buffer)))
}

// Len returns the number of buffered records.
func (a *Accumulator) Len() int {
	return len(a.buffer)
}

// Flushes returns the number of successful flushes.
func (a *Accumulator) Flushes() int {
	return a.flushes
}

// Written returns the number of records flushed so far.
func (a *Accumulator) Written() int {
	return a.written
}

// FlushIfNonEmpty writes the whole buffer as one JSON array and clears it.
// An empty buffer is a no-op.
func (a *Accumulator) FlushIfNonEmpty(ctx context.Context) (FlushResult, error) {
	if len(a.buffer) == 0 {
		return FlushResult{}, nil
	}

	blob, err := a.encode(a.buffer, "", a.indent)
	if err != nil {
		flushesTotal.WithLabelValues("error").Inc()
		return FlushResult{}, fmt.Errorf("%w: marshal %d records: %w", ErrFlushFailed, len(a.buffer), err)
	}

	name := a.namer.Next()
	uri, err := a.sink.Write(ctx, blob, name)
	if err != nil {
		flushesTotal.WithLabelValues("error").Inc()
		a.logger.Error().
			Err(err).
			Str("destination", name).
			Int("records", len(a.buffer)).
			Msg("Flush failed, records kept in buffer")
		return FlushResult{}, fmt.Errorf("%w: write %s: %w", ErrFlushFailed, name, err)
	}

	result := FlushResult{
		Flushed:     true,
		Records:     len(a.buffer),
		Destination: name,
		URI:         uri,
	}

	a.buffer = nil
	a.flushes++
	a.written += result.Records
	flushesTotal.WithLabelValues("ok").Inc()
	flushedRecordsTotal.Add(float64(result.Records))
	bufferedRecords.Set(0)

	a.logger.Info().
		Str("destination", name).
		Str("uri", uri).
		Int("records", result.Records).
		Msg("Flushed records")

	return result, nil
}
