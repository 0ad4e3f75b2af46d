package core

import (
	"context"
	"sync"
	"time"
)

// --- MockMetricsCollector ---

// MockMetricsCollector implements the MetricsCollector interface for testing.
// It records every call so tests can assert on what the middleware and
// clients reported.
//
// Usage:
//
//	mock := &MockMetricsCollector{}
//	srv.Metrics = mock
//	... drive a request ...
//	if len(mock.Requests) != 1 { t.Fatal(...) }
type MockMetricsCollector struct {
	// mu protects the recorded slices for concurrent access.
	mu sync.Mutex

	// Requests records every RecordRequest invocation.
	Requests []RequestMetricCall

	// UpstreamCalls records every RecordUpstreamCall invocation.
	UpstreamCalls []UpstreamMetricCall
}

// RequestMetricCall records the arguments of a single RecordRequest invocation.
type RequestMetricCall struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

// UpstreamMetricCall records the arguments of a single RecordUpstreamCall invocation.
type UpstreamMetricCall struct {
	Upstream string
	Outcome  string
	Duration time.Duration
}

// RecordRequest implements the MetricsCollector interface.
func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RequestMetricCall{
		Method:   method,
		Endpoint: endpoint,
		Status:   status,
		Duration: duration,
	})
}

// RecordUpstreamCall implements the MetricsCollector interface.
func (m *MockMetricsCollector) RecordUpstreamCall(upstream, outcome string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpstreamCalls = append(m.UpstreamCalls, UpstreamMetricCall{
		Upstream: upstream,
		Outcome:  outcome,
		Duration: duration,
	})
}

// RequestCount returns the number of recorded RecordRequest calls.
func (m *MockMetricsCollector) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// --- MockHealthProbe ---

// MockHealthProbe implements the HealthProbe interface for testing.
// It allows injecting a fixed error, a delay, or a dynamic CheckFunc.
//
// Usage:
//
//	probe := &MockHealthProbe{ProbeName: "credentials"}
//	srv.HealthProbes = append(srv.HealthProbes, probe)
//
// To simulate an unhealthy subsystem:
//
//	probe := &MockHealthProbe{ProbeName: "temp_storage", Err: errors.New("disk full")}
type MockHealthProbe struct {
	// ProbeName is returned by Name().
	ProbeName string

	// Err is the error returned by Check. When nil, Check reports healthy.
	Err error

	// Delay, when non-zero, makes Check block for the given duration or until
	// the context is cancelled, whichever comes first. Used to exercise the
	// health handler's timeout path.
	Delay time.Duration

	// CheckFunc is an optional function that overrides the default behavior.
	// When set, it takes precedence over Err and Delay.
	CheckFunc func(ctx context.Context) error

	// mu protects CallCount for concurrent access.
	mu sync.Mutex

	// CallCount records how many times Check was invoked.
	CallCount int
}

// Name implements the HealthProbe interface.
func (m *MockHealthProbe) Name() string {
	return m.ProbeName
}

// Check implements the HealthProbe interface.
func (m *MockHealthProbe) Check(ctx context.Context) error {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.CheckFunc != nil {
		return m.CheckFunc(ctx)
	}

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return m.Err
}

// Compile-time interface assertions.
var (
	_ MetricsCollector = (*MockMetricsCollector)(nil)
	_ HealthProbe      = (*MockHealthProbe)(nil)
)
