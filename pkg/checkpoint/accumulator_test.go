package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/Sternrassler/catalog-harvester/pkg/sink"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(ids ...string) []catalog.Record {
	out := make([]catalog.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Record{VideoID: id, Tags: []string{}})
	}
	return out
}

func newTestAccumulator(w sink.Writer) *Accumulator {
	clock := time.Unix(1700000000, 0)
	return New(w, NewNamer("", func() time.Time { return clock }), zerolog.Nop())
}

func TestFlushIfNonEmpty_EmptyBufferIsNoop(t *testing.T) {
	mem := sink.NewMemory()
	acc := newTestAccumulator(mem)

	result, err := acc.FlushIfNonEmpty(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Flushed)
	assert.Equal(t, 0, mem.Len())
	assert.Equal(t, 0, acc.Flushes())
}

func TestFlushIfNonEmpty_WritesBufferInOrder(t *testing.T) {
	mem := sink.NewMemory()
	acc := newTestAccumulator(mem)

	acc.Append(records("a", "b"))
	acc.Append(nil)
	acc.Append(records("c"))
	assert.Equal(t, 3, acc.Len())

	result, err := acc.FlushIfNonEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Flushed)
	assert.Equal(t, 3, result.Records)
	assert.Equal(t, "all_video_info_1700000000.000000.json", result.Destination)
	assert.Equal(t, "memory://"+result.Destination, result.URI)
	assert.Equal(t, 0, acc.Len())

	blob, ok := mem.Get(result.Destination)
	require.True(t, ok)

	var got []catalog.Record
	require.NoError(t, json.Unmarshal(blob, &got))
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].VideoID)
	assert.Equal(t, "b", got[1].VideoID)
	assert.Equal(t, "c", got[2].VideoID)
	assert.Contains(t, string(blob), "\n    {", "dump should be indent formatted")
}

func TestFlushIfNonEmpty_FailureKeepsBuffer(t *testing.T) {
	mem := sink.NewMemory()
	mem.FailWith = errors.New("disk full")
	acc := newTestAccumulator(mem)
	acc.Append(records("a", "b"))

	_, err := acc.FlushIfNonEmpty(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.Equal(t, 2, acc.Len(), "buffer must survive a failed flush")

	mem.FailWith = nil
	result, err := acc.FlushIfNonEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, 0, acc.Len())
}

func TestFlushIfNonEmpty_EncodeErrorIsWrapped(t *testing.T) {
	errEncode := errors.New("unsupported value")
	mem := sink.NewMemory()
	acc := newTestAccumulator(mem)
	acc.encode = func(any, string, string) ([]byte, error) { return nil, errEncode }
	acc.Append(records("a"))

	_, err := acc.FlushIfNonEmpty(context.Background())
	assert.ErrorIs(t, err, ErrFlushFailed)
	assert.ErrorIs(t, err, errEncode)
	assert.Equal(t, 1, acc.Len())
	assert.Equal(t, 0, mem.Len())
}

func TestFlushIfNonEmpty_Conservation(t *testing.T) {
	mem := sink.NewMemory()
	acc := newTestAccumulator(mem)

	total := 0
	for i := 0; i < 5; i++ {
		batch := records("x", "y", "z")
		acc.Append(batch)
		total += len(batch)
		if i%2 == 0 {
			_, err := acc.FlushIfNonEmpty(context.Background())
			require.NoError(t, err)
		}
		assert.Equal(t, total, acc.Len()+acc.Written())
	}

	_, err := acc.FlushIfNonEmpty(context.Background())
	require.NoError(t, err)
	assert.Equal(t, total, acc.Written())
	assert.Equal(t, 3, mem.Len())

	names := mem.Names()
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}
