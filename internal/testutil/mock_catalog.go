// Package testutil provides testing utilities for the catalog harvester.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// VideosPath is the path the mock serves, matching the default client config.
const VideosPath = "/youtube/v3/videos"

// MockResponse defines one scripted response of the mock catalog.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockCatalog is a configurable mock of the videos.list endpoint.
//
// Scripted responses are served in order; once the script is exhausted every
// request gets a single page that echoes the requested ids as items.
type MockCatalog struct {
	server *httptest.Server
	mu     sync.Mutex
	script []MockResponse

	// Tracking
	RequestCount int
	Queries      []url.Values
}

// NewMockCatalog creates a new mock catalog server.
func NewMockCatalog() *MockCatalog {
	mock := &MockCatalog{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != VideosPath {
			http.NotFound(w, r)
			return
		}

		mock.mu.Lock()
		mock.RequestCount++
		mock.Queries = append(mock.Queries, r.URL.Query())
		var next *MockResponse
		if len(mock.script) > 0 {
			next = &mock.script[0]
			mock.script = mock.script[1:]
		}
		mock.mu.Unlock()

		if next == nil {
			mock.defaultHandler(w, r)
			return
		}

		if next.Delay > 0 {
			select {
			case <-time.After(next.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		for key, value := range next.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(next.StatusCode)
		if next.Body != "" {
			w.Write([]byte(next.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL, usable as the client base URL.
func (m *MockCatalog) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCatalog) Close() {
	m.server.Close()
}

// Enqueue appends scripted responses.
func (m *MockCatalog) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockCatalog) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetQueries returns a copy of the query strings received so far.
func (m *MockCatalog) GetQueries() []url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]url.Values(nil), m.Queries...)
}

// defaultHandler answers with one item per requested id and no next page.
func (m *MockCatalog) defaultHandler(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("id"); raw != "" {
		ids = strings.Split(raw, ",")
	}

	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(PageBody("", ids...)))
}

// ItemJSON renders a minimal videos.list item for id.
func ItemJSON(id string) string {
	return fmt.Sprintf(`{"kind":"youtube#video","id":%q,"snippet":{"title":"title %s","channelId":"UC-%s","channelTitle":"channel","tags":["t"]},"status":{"privacyStatus":"public"},"statistics":{"viewCount":"10","likeCount":"2"}}`, id, id, id)
}

// PageBody renders a videos.list response for ids with an optional next page token.
func PageBody(nextPageToken string, ids ...string) string {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = ItemJSON(id)
	}

	body := `{"kind":"youtube#videoListResponse","items":[` + strings.Join(items, ",") + `]`
	if nextPageToken != "" {
		body += fmt.Sprintf(`,"nextPageToken":%q`, nextPageToken)
	}
	return body + `}`
}

// NewPageResponse creates a 200 response holding items for ids.
func NewPageResponse(nextPageToken string, ids ...string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       PageBody(nextPageToken, ids...),
	}
}

// NewQuotaExceededResponse creates the 403 the API returns once the daily quota is spent.
func NewQuotaExceededResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body: `{"error":{"code":403,"message":"The request cannot be completed because you have exceeded your quota.",` +
			`"errors":[{"message":"The request cannot be completed because you have exceeded your quota.","domain":"youtube.quota","reason":"quotaExceeded"}]}}`,
	}
}

// NewBadRequestResponse creates a 400 with a non-quota reason.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error":{"code":400,"message":"Invalid id","errors":[{"domain":"youtube.parameter","reason":"invalidParameter"}]}}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"code":500,"message":"Backend Error","errors":[{"reason":"backendError"}]}}`,
	}
}

// NewMalformedResponse creates a 200 whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>not json</html>`,
	}
}

// NewSlowResponse delays a default page by delay, long enough to trip a short client timeout.
func NewSlowResponse(delay time.Duration, ids ...string) MockResponse {
	resp := NewPageResponse("", ids...)
	resp.Delay = delay
	return resp
}
