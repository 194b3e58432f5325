package checkpoint

import (
	"fmt"
	"sync"
	"time"
)

// DefaultPrefix is the file name prefix of record dumps.
const DefaultPrefix = "all_video_info"

// Namer generates timestamp-based destination names.
type Namer struct {
	mu     sync.Mutex
	prefix string
	now    func() time.Time
	last   time.Time
}

// NewNamer creates a Namer. A nil now uses time.Now.
func NewNamer(prefix string, now func() time.Time) *Namer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &Namer{prefix: prefix, now: now}
}

// Next returns a name later than every name returned before.
func (n *Namer) Next() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	t := n.now().Round(0).Truncate(time.Microsecond)
	if !t.After(n.last) {
		t = n.last.Add(time.Microsecond)
	}
	n.last = t

	return fmt.Sprintf("%s_%d.%06d.json", n.prefix, t.Unix(), t.Nanosecond()/int(time.Microsecond))
}
