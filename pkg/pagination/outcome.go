package pagination

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/Sternrassler/catalog-harvester/pkg/client"
)

// OutcomeKind classifies the result of a single page fetch.
type OutcomeKind string

const (
	// OutcomeOK means the page was fetched and decoded.
	OutcomeOK OutcomeKind = "ok"

	// OutcomeQuotaExceeded means the account quota is exhausted for this run.
	OutcomeQuotaExceeded OutcomeKind = "quota_exceeded"

	// OutcomeTimedOut means the call timed out and may be re-issued as is.
	OutcomeTimedOut OutcomeKind = "timed_out"

	// OutcomeFailed covers every other error; the group is abandoned.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome is the classified result of one FetchPage call.
type Outcome struct {
	Kind OutcomeKind

	// Records and NextCursor are only set when Kind is OutcomeOK.
	Records    []catalog.Record
	NextCursor string

	// Skipped counts malformed items dropped while decoding the page.
	Skipped int

	// Err is the underlying error for non-OK outcomes.
	Err error
}

// HasNext reports whether an OK outcome carries a continuation cursor.
func (o Outcome) HasNext() bool {
	return o.Kind == OutcomeOK && o.NextCursor != ""
}

// errEmptyResponse is reported when the lister returns neither page nor error.
var errEmptyResponse = errors.New("empty response")

// Classify maps a lister error onto an OutcomeKind. nil maps to OutcomeOK.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeOK
	}

	switch client.ClassOf(err) {
	case client.ErrorClassQuota:
		return OutcomeQuotaExceeded
	case client.ErrorClassTimeout:
		return OutcomeTimedOut
	case "":
		// Not a classified client error; fall through to the generic rules.
	default:
		return OutcomeFailed
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimedOut
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimedOut
	}

	text := err.Error()
	switch {
	case strings.Contains(text, "quotaExceeded"):
		return OutcomeQuotaExceeded
	case strings.Contains(text, "timed out"):
		return OutcomeTimedOut
	default:
		return OutcomeFailed
	}
}
