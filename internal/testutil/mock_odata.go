// Package testutil provides testing utilities for the EAEU OData exporter.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PageCall records the paging parameters of one request, in arrival order.
type PageCall struct {
	Filter  string
	OrderBy string
	Skip    int
	Top     int
}

// ScriptedFailure makes the mock answer one request (1-based, counted
// across all requests) with a fixed status instead of data.
type ScriptedFailure struct {
	Request    int
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockOData is a configurable mock OData server. It serves a fixed
// dataset honoring $skip/$top, tracks every request, and can inject
// scripted failures or reject filters containing a marker substring
// with 504, mimicking a gateway that times out on heavy filters.
type MockOData struct {
	server *httptest.Server
	mu     sync.RWMutex

	dataset    []any
	failures   map[int]ScriptedFailure
	rejectWith string

	// Tracking
	RequestCount      int
	Calls             []PageCall
	LastRequestHeader http.Header
}

// NewMockOData creates a mock server over the given dataset.
func NewMockOData(dataset []any) *MockOData {
	mock := &MockOData{
		dataset:  dataset,
		failures: make(map[int]ScriptedFailure),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.handle))
	return mock
}

// URL returns the mock server URL.
func (m *MockOData) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOData) Close() {
	m.server.Close()
}

// Reset clears tracking counters and scripted failures; the dataset stays.
func (m *MockOData) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Calls = nil
	m.LastRequestHeader = nil
	m.failures = make(map[int]ScriptedFailure)
}

// SetDataset replaces the served records.
func (m *MockOData) SetDataset(dataset []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataset = dataset
}

// FailRequest schedules a scripted failure for the n-th request.
func (m *MockOData) FailRequest(f ScriptedFailure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[f.Request] = f
}

// RejectFilterContaining makes every request whose $filter contains the
// marker answer 504 Gateway Timeout. Pass "" to disable.
func (m *MockOData) RejectFilterContaining(marker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectWith = marker
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOData) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetCalls returns a copy of the recorded page calls.
func (m *MockOData) GetCalls() []PageCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]PageCall, len(m.Calls))
	copy(calls, m.Calls)
	return calls
}

// SkipSequence returns just the $skip value of every recorded call.
func (m *MockOData) SkipSequence() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	skips := make([]int, len(m.Calls))
	for i, call := range m.Calls {
		skips[i] = call.Skip
	}
	return skips
}

func (m *MockOData) handle(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	call := PageCall{
		Filter:  query.Get("$filter"),
		OrderBy: query.Get("$orderby"),
		Skip:    atoiOrZero(query.Get("$skip")),
		Top:     atoiOrZero(query.Get("$top")),
	}

	m.mu.Lock()
	m.RequestCount++
	m.Calls = append(m.Calls, call)
	m.LastRequestHeader = r.Header.Clone()
	failure, failNow := m.failures[m.RequestCount]
	rejectWith := m.rejectWith
	dataset := m.dataset
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	if failNow {
		if failure.Delay > 0 {
			time.Sleep(failure.Delay)
		}
		w.WriteHeader(failure.StatusCode)
		if failure.Body != "" {
			w.Write([]byte(failure.Body))
		}
		return
	}

	if rejectWith != "" && strings.Contains(call.Filter, rejectWith) {
		w.WriteHeader(http.StatusGatewayTimeout)
		w.Write([]byte(`{"error": "gateway timeout"}`))
		return
	}

	page := slicePage(dataset, call.Skip, call.Top)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{"value": page})
}

func slicePage(dataset []any, skip, top int) []any {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(dataset) {
		return []any{}
	}
	end := len(dataset)
	if top > 0 && skip+top < end {
		end = skip + top
	}
	return dataset[skip:end]
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Record builds a minimal dataset record carrying the partition key and
// an update timestamp, plus any extra fields.
func Record(country, docID, updated string, extra map[string]any) map[string]any {
	record := map[string]any{
		"unifiedCountryCode": map[string]any{"value": country},
		"docId":              docID,
	}
	if updated != "" {
		record["resourceItemStatusDetails"] = map[string]any{
			"updateDateTime": map[string]any{"$date": updated},
		}
	}
	for key, value := range extra {
		record[key] = value
	}
	return record
}

// Dataset builds n records for one country with sequential doc ids.
func Dataset(country string, n int) []any {
	records := make([]any, n)
	for i := range records {
		records[i] = Record(country, "doc-"+strconv.Itoa(i+1), "2024-06-24T10:00:00.000Z", nil)
	}
	return records
}
