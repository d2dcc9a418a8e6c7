package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rmax-ai/usagewatch/pkg/usage"
)

// MockOrgID is the organization reported by MockClient.
const MockOrgID = "00000000-0000-4000-8000-000000000000"

// MockClient generates synthetic usage for running without a session.
type MockClient struct {
	mu      sync.Mutex
	config  MockConfig
	windows map[usage.QuotaName]*mockWindow
	failure error
	now     func() time.Time
}

type MockConfig struct {
	Latency time.Duration
	// MaxBurn is the largest utilization increase per fetch, in percent.
	MaxBurn float64
}

type mockWindow struct {
	util    float64
	resetAt time.Time
	period  time.Duration
}

// NewMockClient starts with both quotas empty.
func NewMockClient() *MockClient {
	now := time.Now()
	return &MockClient{
		config: MockConfig{
			Latency: 50 * time.Millisecond,
			MaxBurn: 3,
		},
		windows: map[usage.QuotaName]*mockWindow{
			usage.QuotaSession: {period: 5 * time.Hour, resetAt: now.Add(5 * time.Hour)},
			usage.QuotaWeekly:  {period: 7 * 24 * time.Hour, resetAt: now.Add(7 * 24 * time.Hour)},
		},
		now: time.Now,
	}
}

// WithConfig replaces the latency and burn settings.
func (m *MockClient) WithConfig(cfg MockConfig) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = cfg
	return m
}

// SetUtilization pins a quota to util. The next fetch burns on top of it.
func (m *MockClient) SetUtilization(q usage.QuotaName, util float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[q]; ok {
		w.util = util
	}
}

// FailWith makes every fetch return err until cleared with nil.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

func (m *MockClient) ResolveOrg(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", UnknownError(OpOrganizations, err)
	}
	return MockOrgID, nil
}

func (m *MockClient) FetchUsage(ctx context.Context, orgID string) (usage.Snapshot, error) {
	m.mu.Lock()
	latency := m.config.Latency
	m.mu.Unlock()

	// Simulate network latency
	select {
	case <-ctx.Done():
		return usage.Snapshot{}, UnknownError(OpUsage, ctx.Err())
	case <-time.After(latency):
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failure != nil {
		return usage.Snapshot{}, m.failure
	}

	now := m.now()
	quotas := make(map[usage.QuotaName]*usage.Quota, len(m.windows))
	for name, w := range m.windows {
		if now.After(w.resetAt) {
			w.util = 0
			w.resetAt = now.Add(w.period)
		}
		if m.config.MaxBurn > 0 {
			w.util += rand.Float64() * m.config.MaxBurn
		}
		if w.util > 100 {
			w.util = 100
		}
		quotas[name] = &usage.Quota{
			Utilization: usage.Float(w.util),
			ResetsAt:    usage.Time(w.resetAt),
		}
	}

	return usage.Snapshot{
		FiveHour: quotas[usage.QuotaSession],
		SevenDay: quotas[usage.QuotaWeekly],
	}, nil
}
