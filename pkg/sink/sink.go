// Package sink provides the durable destinations flushed record dumps are
// written to: the local filesystem, Redis, Google Cloud Storage and an
// in-memory store for tests.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ContentType is the media type of every blob written by the harvester.
const ContentType = "application/json"

var (
	// ErrExists is returned when a destination name is already taken. Sinks
	// never overwrite an earlier dump.
	ErrExists = errors.New("destination already exists")

	// ErrInvalidName is returned for empty names or names containing path separators.
	ErrInvalidName = errors.New("invalid destination name")
)

var sinkWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "harvester_sink_writes_total",
	Help: "Total blob writes by backend and result",
}, []string{"backend", "result"})

// Writer persists a serialized blob under a destination name and returns a URI
// describing where it landed.
type Writer interface {
	Write(ctx context.Context, blob []byte, name string) (string, error)
}

// validateName rejects names that could escape the destination namespace.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func observe(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sinkWritesTotal.WithLabelValues(backend, result).Inc()
}
