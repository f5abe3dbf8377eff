// Package client provides the HTTP client for the EAEU open-data OData
// endpoint: query construction, payload envelope unwrapping, error
// classification and connect-level retries.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the conformity document collection endpoint.
const DefaultBaseURL = "https://opendata.eaeunion.org/odata/conformityDocDetailsType"

// maxErrorDetail bounds how much of an error response body is attached
// to a fatal error.
const maxErrorDetail = 500

// Prometheus metrics for OData client operations.
var (
	odataRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eaeu_odata_requests_total",
		Help: "Total OData requests by HTTP status",
	}, []string{"status"})

	odataRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eaeu_odata_request_duration_seconds",
		Help:    "OData request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	odataErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eaeu_odata_errors_total",
		Help: "Total OData errors by class",
	}, []string{"class"})

	odataRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eaeu_odata_network_retries_total",
		Help: "Total network-level retry attempts",
	})

	odataRetryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eaeu_odata_network_retry_backoff_seconds",
		Help:    "Backoff duration for network retries",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	odataRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eaeu_odata_network_retry_exhausted_total",
		Help: "Total number of times network retry attempts were exhausted",
	})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the OData collection (default: DefaultBaseURL).
	BaseURL string

	// User-Agent header sent with every request.
	UserAgent string

	// RequestTimeout for a single HTTP request.
	RequestTimeout time.Duration

	// Retry configuration for network errors. HTTP status errors are
	// never retried here.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      userAgent,
		RequestTimeout: 60 * time.Second,
		Retry:          DefaultRetryConfig(),
	}
}

// Client is the OData HTTP client.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new OData client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive (got %v)", cfg.RequestTimeout)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "odata-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// PageRequest describes one page fetch.
type PageRequest struct {
	// Filter is the $filter expression (see BuildFilter).
	Filter string

	// OrderBy is the $orderby expression.
	OrderBy string

	// Skip is the page offset.
	Skip int

	// Top is the page size.
	Top int
}

// FetchPage requests one page of records at the given offset.
//
// Network errors are retried with exponential backoff; HTTP status errors
// are returned immediately as *ODataError so the caller can decide between
// retry, filter fallback and fatal abort.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]any, error) {
	query := url.Values{}
	query.Set("$top", strconv.Itoa(req.Top))
	query.Set("$skip", strconv.Itoa(req.Skip))
	if req.Filter != "" {
		query.Set("$filter", req.Filter)
	}
	if req.OrderBy != "" {
		query.Set("$orderby", req.OrderBy)
	}
	requestURL := c.config.BaseURL + "?" + query.Encode()

	started := time.Now()
	defer func() {
		odataRequestDuration.Observe(time.Since(started).Seconds())
	}()

	c.logger.Debug().
		Int("skip", req.Skip).
		Int("top", req.Top).
		Str("filter", req.Filter).
		Msg("HTTP request start")

	var payload any
	fetchErr := retryWithBackoff(ctx, c.config.Retry, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn().Err(err).Int("skip", req.Skip).Msg("HTTP request failed")
			odataErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			odataRequestsTotal.WithLabelValues("network_error").Inc()
			return err
		}
		defer resp.Body.Close()

		odataRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(started)).
			Int("skip", req.Skip).
			Msg("HTTP response")

		if resp.StatusCode >= 400 {
			return c.statusError(resp)
		}

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			odataErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
	if fetchErr != nil {
		return nil, fetchErr
	}

	return ExtractRecords(payload), nil
}

// statusError builds a classified error from a non-2xx response. The body
// is only attached for fatal 4xx errors, truncated to maxErrorDetail bytes.
func (c *Client) statusError(resp *http.Response) error {
	class := ClassifyStatus(resp.StatusCode)
	odataErrorsTotal.WithLabelValues(string(class)).Inc()

	oerr := &ODataError{
		StatusCode: resp.StatusCode,
		ErrorClass: class,
		Message:    resp.Status,
	}
	if class == ErrorClassClient {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		oerr.Detail = strings.TrimSpace(string(body))
	}
	return oerr
}

// ExtractRecords unwraps the payload envelope: a bare array is used as-is,
// an object is probed for the conventional wrapper keys (first non-empty
// match wins), anything else is wrapped as a single-record list.
func ExtractRecords(payload any) []any {
	switch val := payload.(type) {
	case []any:
		return val
	case map[string]any:
		for _, key := range []string{"value", "Value", "result", "Result", "data", "items"} {
			inner, ok := val[key]
			if !ok || inner == nil {
				continue
			}
			if list, isList := inner.([]any); isList {
				if len(list) == 0 {
					continue
				}
				return list
			}
			return []any{inner}
		}
		return []any{}
	case nil:
		return []any{}
	default:
		return []any{payload}
	}
}
