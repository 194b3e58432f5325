package pagination

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/Sternrassler/catalog-harvester/pkg/client"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// listerFunc adapts a function to PageLister.
type listerFunc func(ctx context.Context, ids []catalog.Identifier, pageToken string) (*catalog.RawPage, error)

func (f listerFunc) ListCatalogItems(ctx context.Context, ids []catalog.Identifier, pageToken string) (*catalog.RawPage, error) {
	return f(ctx, ids, pageToken)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected OutcomeKind
	}{
		{name: "nil", err: nil, expected: OutcomeOK},
		{name: "structured quota", err: &client.APIError{ErrorClass: client.ErrorClassQuota}, expected: OutcomeQuotaExceeded},
		{name: "structured timeout", err: &client.APIError{ErrorClass: client.ErrorClassTimeout}, expected: OutcomeTimedOut},
		{name: "structured server", err: &client.APIError{ErrorClass: client.ErrorClassServer}, expected: OutcomeFailed},
		{name: "structured decode", err: &client.APIError{ErrorClass: client.ErrorClassDecode}, expected: OutcomeFailed},
		{
			name:     "structured class wins over text",
			err:      &client.APIError{ErrorClass: client.ErrorClassClient, Message: "request timed out"},
			expected: OutcomeFailed,
		},
		{name: "wrapped structured quota", err: fmt.Errorf("list: %w", &client.APIError{ErrorClass: client.ErrorClassQuota}), expected: OutcomeQuotaExceeded},
		{name: "net timeout", err: timeoutError{}, expected: OutcomeTimedOut},
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: OutcomeTimedOut},
		{name: "quota text fallback", err: errors.New(`<HttpError 403 "quotaExceeded">`), expected: OutcomeQuotaExceeded},
		{name: "timeout text fallback", err: errors.New("The read operation timed out"), expected: OutcomeTimedOut},
		{name: "anything else", err: errors.New("connection reset by peer"), expected: OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.expected {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.expected)
			}
		})
	}
}

func TestFetchPage_OK(t *testing.T) {
	var gotIDs []catalog.Identifier
	var gotToken string
	lister := listerFunc(func(_ context.Context, ids []catalog.Identifier, pageToken string) (*catalog.RawPage, error) {
		gotIDs, gotToken = ids, pageToken
		return &catalog.RawPage{
			Items: []json.RawMessage{
				json.RawMessage(`{"id": "a"}`),
				json.RawMessage(`17`),
				json.RawMessage(`{"id": "b"}`),
			},
			NextPageToken: "next",
		}, nil
	})

	group := catalog.Group{Index: 2, IDs: []catalog.Identifier{"a", "b"}}
	outcome := NewFetcher(lister, zerolog.Nop()).FetchPage(context.Background(), group, "cur")

	if outcome.Kind != OutcomeOK {
		t.Fatalf("Kind = %q, want ok (err=%v)", outcome.Kind, outcome.Err)
	}
	if len(gotIDs) != 2 || gotToken != "cur" {
		t.Errorf("lister called with ids=%v token=%q", gotIDs, gotToken)
	}
	if len(outcome.Records) != 2 || outcome.Skipped != 1 {
		t.Errorf("records=%d skipped=%d, want 2 and 1", len(outcome.Records), outcome.Skipped)
	}
	if !outcome.HasNext() || outcome.NextCursor != "next" {
		t.Errorf("NextCursor = %q, want next", outcome.NextCursor)
	}
}

func TestFetchPage_EmptyResponseFails(t *testing.T) {
	lister := listerFunc(func(context.Context, []catalog.Identifier, string) (*catalog.RawPage, error) {
		return nil, nil
	})

	outcome := NewFetcher(lister, zerolog.Nop()).FetchPage(context.Background(), catalog.Group{}, "")
	if outcome.Kind != OutcomeFailed {
		t.Errorf("Kind = %q, want failed", outcome.Kind)
	}
	if !errors.Is(outcome.Err, errEmptyResponse) {
		t.Errorf("Err = %v, want errEmptyResponse", outcome.Err)
	}
}

func TestFetchPage_PageWithoutItems(t *testing.T) {
	lister := listerFunc(func(context.Context, []catalog.Identifier, string) (*catalog.RawPage, error) {
		return &catalog.RawPage{}, nil
	})

	outcome := NewFetcher(lister, zerolog.Nop()).FetchPage(context.Background(), catalog.Group{}, "")
	if outcome.Kind != OutcomeOK || len(outcome.Records) != 0 || outcome.HasNext() {
		t.Errorf("outcome = %+v, want empty ok page", outcome)
	}
}

func TestFetchPage_ErrorOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected OutcomeKind
	}{
		{"quota", &client.APIError{StatusCode: 403, ErrorClass: client.ErrorClassQuota, Reason: "quotaExceeded"}, OutcomeQuotaExceeded},
		{"timeout", &client.APIError{ErrorClass: client.ErrorClassTimeout}, OutcomeTimedOut},
		{"other", errors.New("boom"), OutcomeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lister := listerFunc(func(context.Context, []catalog.Identifier, string) (*catalog.RawPage, error) {
				return nil, tt.err
			})

			outcome := NewFetcher(lister, zerolog.Nop()).FetchPage(context.Background(), catalog.Group{}, "")
			if outcome.Kind != tt.expected {
				t.Errorf("Kind = %q, want %q", outcome.Kind, tt.expected)
			}
			if outcome.Err != tt.err {
				t.Errorf("Err = %v, want %v", outcome.Err, tt.err)
			}
			if outcome.Records != nil || outcome.HasNext() {
				t.Error("non-OK outcome must not carry records or a cursor")
			}
		})
	}
}
