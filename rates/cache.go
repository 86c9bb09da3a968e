// Package rates keeps an in-memory table of exchange rates per USD,
// refreshed periodically from a remote provider.
package rates

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Table maps a currency code to the number of units of that currency per USD.
type Table map[string]float64

// Clone returns a copy of t.
func (t Table) Clone() Table {
	c := make(Table, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}

// Provider fetches a fresh rate table.
type Provider interface {
	Fetch(ctx context.Context) (Table, error)
}

// ErrEmptyTable is returned when a provider answered without any rate.
var ErrEmptyTable = errors.New("rate table is empty")

// Cache holds the current rate table. The zero value is not usable, use New.
type Cache struct {
	provider Provider
	logger   *zap.Logger

	mu          sync.RWMutex
	table       Table
	lastRefresh time.Time
}

// New returns a Cache seeded with DefaultRates.
func New(provider Provider, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		provider: provider,
		logger:   logger,
		table:    DefaultRates.Clone(),
	}
}

// Refresh replaces the whole table with the provider's answer.
// On failure the current table is left untouched.
func (c *Cache) Refresh(ctx context.Context) error {
	t, err := c.provider.Fetch(ctx)
	if err == nil && len(t) == 0 {
		err = ErrEmptyTable
	}
	if err != nil {
		c.logger.Warn("rate refresh failed, keeping previous table", zap.Error(err))
		return err
	}
	t = t.Clone()
	c.mu.Lock()
	c.table = t
	c.lastRefresh = time.Now()
	c.mu.Unlock()
	c.logger.Info("rates refreshed", zap.Int("currencies", len(t)))
	return nil
}

// Get returns the rate for code. Missing codes fall back to DefaultRates,
// then to 1.
func (c *Cache) Get(code string) float64 {
	c.mu.RLock()
	r, ok := c.table[code]
	c.mu.RUnlock()
	if ok && r > 0 {
		return r
	}
	if r, ok := DefaultRates[code]; ok {
		return r
	}
	return 1
}

// Table returns a copy of the current table.
func (c *Cache) Table() Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Clone()
}

// LastRefresh returns the time of the last successful refresh, zero if none.
func (c *Cache) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Run refreshes once immediately then on every tick until ctx is done.
// Refresh errors are logged only.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	_ = c.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}
