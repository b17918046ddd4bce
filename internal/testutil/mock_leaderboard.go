// Package testutil provides testing utilities for the leaderboard archiver.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ScoresPath is the path the mock serves.
const ScoresPath = "/api/getScores"

// MockResponse defines the behavior for one descriptor key.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// scoresRequest mirrors the getScores request body.
type scoresRequest struct {
	DisplayType int `json:"display_type"`
	ControlType int `json:"control_type"`
	PBType      int `json:"pb_type"`
}

func (r scoresRequest) key() string {
	return fmt.Sprintf("%d_%d_%d", r.DisplayType, r.ControlType, r.PBType)
}

// MockLeaderboard is a configurable mock leaderboard API for testing.
type MockLeaderboard struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  func(key string) MockResponse

	// Tracking
	requestCount      int
	keyCounts         map[string]int
	inFlight          int
	maxInFlight       int
	lastRequestHeader http.Header
}

// NewMockLeaderboard creates a new mock server. Unconfigured keys answer
// 200 with a small JSON body naming the key.
func NewMockLeaderboard() *MockLeaderboard {
	mock := &MockLeaderboard{
		responses: make(map[string]MockResponse),
		keyCounts: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

func (m *MockLeaderboard) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != ScoresPath || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var req scoresRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	key := req.key()

	m.mu.Lock()
	m.requestCount++
	m.keyCounts[key]++
	m.lastRequestHeader = r.Header.Clone()
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	resp, ok := m.responses[key]
	fallback := m.fallback
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if !ok {
		if fallback != nil {
			resp = fallback(key)
		} else {
			resp = NewScoresResponse(fmt.Sprintf(`{"key":%q,"scores":[]}`, key))
		}
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server base URL (without /api).
func (m *MockLeaderboard) URL() string {
	return m.server.URL
}

// Client returns an HTTP client wired to the mock server.
func (m *MockLeaderboard) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockLeaderboard) Close() {
	m.server.Close()
}

// SetResponse configures the response for a descriptor key.
func (m *MockLeaderboard) SetResponse(key string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = resp
}

// SetFallback configures the response for keys without an explicit response.
func (m *MockLeaderboard) SetFallback(fn func(key string) MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// GetRequestCount returns the number of getScores requests received.
func (m *MockLeaderboard) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetKeyCount returns how often a descriptor key was requested.
func (m *MockLeaderboard) GetKeyCount(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keyCounts[key]
}

// GetMaxInFlight returns the highest number of concurrent requests observed.
func (m *MockLeaderboard) GetMaxInFlight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInFlight
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockLeaderboard) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// NewScoresResponse creates a 200 OK response with the given body.
func NewScoresResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewUnauthorizedResponse creates a 401 Unauthorized response.
func NewUnauthorizedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusUnauthorized,
		Body:       `{"error": "Unauthorized"}`,
	}
}

// NewSlowResponse creates a 200 OK response delivered after delay.
func NewSlowResponse(body string, delay time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Delay:      delay,
	}
}
