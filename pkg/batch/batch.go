// Package batch splits the input identifier list into the fixed-size groups
// that are sent to the catalog API one request series at a time.
package batch

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
)

// DefaultGroupSize is the largest number of IDs videos.list accepts per call.
const DefaultGroupSize = 50

// ErrInvalidGroupSize is returned when the group size is not positive.
var ErrInvalidGroupSize = errors.New("group size must be positive")

// Split partitions ids into contiguous groups of at most groupSize identifiers,
// preserving input order. Only the last group may be shorter. The groups share
// the backing array of ids and must be treated as read-only.
func Split(ids []catalog.Identifier, groupSize int) ([]catalog.Group, error) {
	if groupSize <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidGroupSize, groupSize)
	}

	n := len(ids) / groupSize
	if len(ids)%groupSize != 0 {
		n++
	}

	groups := make([]catalog.Group, 0, n)
	for start := 0; start < len(ids); start += groupSize {
		end := start + min(groupSize, len(ids)-start)
		groups = append(groups, catalog.Group{
			Index: len(groups),
			IDs:   ids[start:end:end],
		})
	}

	return groups, nil
}
