// Package client provides the leaderboard API client: one authenticated
// request per descriptor, mapped to a uniform Outcome.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/leaderboard-archiver/pkg/params"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for leaderboard requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_requests_total",
		Help: "Total leaderboard requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leaderboard_request_duration_seconds",
		Help:    "Leaderboard request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leaderboard_errors_total",
		Help: "Total leaderboard request errors by class",
	}, []string{"class"})
)

// ScoresPath is appended to the configured base URL.
const ScoresPath = "/api/getScores"

// Client issues getScores requests against the leaderboard API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the leaderboard service, without the /api suffix (REQUIRED)
	BaseURL string

	// Token is sent verbatim in the Authorization header (REQUIRED)
	Token string

	// UserAgent header
	UserAgent string

	// Timeout bounds a single request including reading the body
	Timeout time.Duration
}

// DefaultConfig returns a default configuration for the given service.
func DefaultConfig(baseURL, token string) Config {
	return Config{
		BaseURL:   baseURL,
		Token:     token,
		UserAgent: "leaderboard-archiver/1.0",
		Timeout:   30 * time.Second,
	}
}

// New creates a new leaderboard client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "leaderboard-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: strings.TrimRight(cfg.BaseURL, "/") + ScoresPath,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Endpoint returns the full getScores URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Fetch performs a single request for d. It never returns an error: transport
// and HTTP failures are reported through the returned Outcome. Fetch holds no
// shared mutable state and is safe for concurrent use.
func (c *Client) Fetch(ctx context.Context, d params.Descriptor) Outcome {
	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	body, status, err := c.do(ctx, d)
	elapsed := time.Since(startTime)
	if err != nil {
		class := classOf(err)
		errorsTotal.WithLabelValues(string(class)).Inc()
		if apiErr, ok := asAPIError(err); ok {
			requestsTotal.WithLabelValues(strconv.Itoa(apiErr.StatusCode)).Inc()
		} else {
			requestsTotal.WithLabelValues(string(class)).Inc()
		}

		c.logger.Debug().
			Err(err).
			Str("descriptor", d.Key()).
			Str("error_class", string(class)).
			Dur("duration", elapsed).
			Msg("Leaderboard request failed")
		return Failure(d, err, elapsed)
	}

	requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	c.logger.Debug().
		Str("descriptor", d.Key()).
		Int("bytes", len(body)).
		Dur("duration", elapsed).
		Msg("Leaderboard request succeeded")
	return Success(d, body, elapsed)
}

// do executes the request and returns the raw body and status code of a 2xx
// response. The body must be valid UTF-8 to be archived verbatim.
func (c *Client) do(ctx context.Context, d params.Descriptor) ([]byte, int, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, 0, &TransportError{Class: ErrorClassNetwork, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, &TransportError{Class: ErrorClassNetwork, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Authorization", c.config.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Class: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Body is not guaranteed on failure; drain so the connection is reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, 0, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Class:      classifyStatus(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &TransportError{Class: classifyTransport(err), Err: fmt.Errorf("read response body: %w", err)}
	}

	if !utf8.Valid(body) {
		return nil, 0, &TransportError{Class: ErrorClassNetwork, Err: errors.New("decode response body: invalid UTF-8")}
	}

	return body, resp.StatusCode, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
