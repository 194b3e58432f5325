// Package client provides the authenticated HTTP client for the catalog API
// (YouTube Data API videos.list) with proxy support, a bounded per-call
// timeout and structured error classification.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/catalog-harvester/pkg/catalog"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for catalog API calls.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_api_requests_total",
		Help: "Total catalog API requests by status",
	}, []string{"status"})

	apiRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_api_request_duration_seconds",
		Help:    "Catalog API request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_api_errors_total",
		Help: "Total catalog API errors by class",
	}, []string{"class"})
)

// maxErrorBody bounds how much of an error response is read for classification.
const maxErrorBody = 64 << 10

// Client lists catalog items for groups of identifiers.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// ServiceName and APIVersion form the endpoint path, e.g. youtube/v3.
	ServiceName string
	APIVersion  string

	// APIKey is sent as the key query parameter (REQUIRED).
	APIKey string

	// BaseURL is the API root, e.g. https://www.googleapis.com.
	BaseURL string

	// Parts selects the resource parts returned per item.
	Parts []string

	// Proxy. An empty host disables the proxy.
	ProxyHost string
	ProxyPort int

	// Timeout bounds a single call, including reading the body.
	Timeout time.Duration

	// UserAgent header (optional).
	UserAgent string
}

// DefaultConfig returns the configuration the harvester runs with unless
// overridden.
func DefaultConfig(apiKey string) Config {
	return Config{
		ServiceName: "youtube",
		APIVersion:  "v3",
		APIKey:      apiKey,
		BaseURL:     "https://www.googleapis.com",
		Parts:       []string{"snippet", "status", "statistics"},
		Timeout:     10 * time.Second,
		UserAgent:   "catalog-harvester/0.1.0",
	}
}

// New creates a new catalog API client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if cfg.ServiceName == "" || cfg.APIVersion == "" {
		return nil, fmt.Errorf("service name and api version are required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	if len(cfg.Parts) == 0 {
		return nil, fmt.Errorf("at least one part is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyHost != "" {
		if cfg.ProxyPort <= 0 {
			return nil, fmt.Errorf("proxy port must be > 0 when proxy host is set")
		}
		transport.Proxy = http.ProxyURL(&url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(cfg.ProxyHost, strconv.Itoa(cfg.ProxyPort)),
		})
	}

	endpoint := strings.TrimRight(cfg.BaseURL, "/") + "/" + cfg.ServiceName + "/" + cfg.APIVersion + "/videos"

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
	}, nil
}

// ListCatalogItems requests one page of items for ids. An empty pageToken
// requests the first page. Failures are returned as *APIError.
func (c *Client) ListCatalogItems(ctx context.Context, ids []catalog.Identifier, pageToken string) (*catalog.RawPage, error) {
	startTime := time.Now()
	defer func() {
		apiRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := c.newRequest(ctx, ids, pageToken)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.logger.Debug().
		Int("ids", len(ids)).
		Str("page_token", pageToken).
		Msg("Executing catalog request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var page catalog.RawPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		// A body read that times out is still a timeout.
		if isTimeout(err) {
			return nil, c.transportError(err)
		}
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "malformed response body",
			Err:        err,
		}
		c.record(apiErr)
		return nil, apiErr
	}

	return &page, nil
}

func (c *Client) newRequest(ctx context.Context, ids []catalog.Identifier, pageToken string) (*http.Request, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}

	query := url.Values{}
	query.Set("part", strings.Join(c.config.Parts, ","))
	query.Set("id", strings.Join(parts, ","))
	query.Set("key", c.config.APIKey)
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	return req, nil
}

// transportError classifies an error raised before a status code was seen.
func (c *Client) transportError(err error) *APIError {
	class := ErrorClassNetwork
	msg := "request failed"
	if isTimeout(err) {
		class = ErrorClassTimeout
		msg = "request timed out"
	}

	apiErr := &APIError{ErrorClass: class, Message: msg, Err: err}
	c.record(apiErr)
	return apiErr
}

// statusError classifies a non-200 response using the error envelope:
//
//	{"error": {"code": 403, "message": "...", "errors": [{"reason": "quotaExceeded"}]}}
func (c *Client) statusError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		ErrorClass: classifyStatus(resp.StatusCode),
		Message:    resp.Status,
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		if envelope.Error.Message != "" {
			apiErr.Message = envelope.Error.Message
		}
		for _, detail := range envelope.Error.Errors {
			if detail.Reason == "" {
				continue
			}
			if apiErr.Reason == "" {
				apiErr.Reason = detail.Reason
			}
			if quotaReasons[detail.Reason] {
				apiErr.Reason = detail.Reason
				apiErr.ErrorClass = ErrorClassQuota
				break
			}
		}
	} else if strings.Contains(string(body), "quotaExceeded") {
		apiErr.Reason = "quotaExceeded"
		apiErr.ErrorClass = ErrorClassQuota
	}

	c.record(apiErr)
	return apiErr
}

func (c *Client) record(apiErr *APIError) {
	apiErrorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
	if apiErr.StatusCode == 0 {
		apiRequestsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
	}

	c.logger.Debug().
		Str("error_class", string(apiErr.ErrorClass)).
		Int("status", apiErr.StatusCode).
		Str("reason", apiErr.Reason).
		Msg("Error classified")
}

// classifyStatus categorizes a status code before the body is inspected.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassDecode
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

type errorEnvelope struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
			Domain  string `json:"domain"`
			Reason  string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Endpoint returns the resolved videos endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}
