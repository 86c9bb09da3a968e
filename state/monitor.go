package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger checks that the backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor tracks whether the backend is reachable. The flag is advisory,
// nothing is blocked while offline.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	online  bool
	checked time.Time
}

// NewMonitor returns a Monitor that assumes the backend is online until a
// probe says otherwise.
func NewMonitor(p Pinger, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{pinger: p, interval: interval, logger: logger, online: true}
}

// Online reports the result of the last probe.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Checked returns the time of the last probe.
func (m *Monitor) Checked() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checked
}

// Check probes the backend now.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()
	err := m.pinger.Ping(ctx)
	online := err == nil

	m.mu.Lock()
	changed := online != m.online
	m.online = online
	m.checked = time.Now()
	m.mu.Unlock()

	if changed {
		if online {
			m.logger.Info("backend is reachable again")
		} else {
			m.logger.Warn("backend is unreachable", zap.Error(err))
		}
	}
	return online
}

// Run probes on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
