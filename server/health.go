package server

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// Pinger is implemented by the store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealth verifies the database is reachable.
type StoreHealth struct {
	Store Pinger
}

// Probe implements the HealthService interface.
func (s StoreHealth) Probe(ctx context.Context) error {
	if s.Store == nil {
		return nil
	}
	if err := s.Store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

// RedisHealth verifies the alert broker is reachable.
type RedisHealth struct {
	Client *redis.Client
}

// Probe implements the HealthService interface.
func (s RedisHealth) Probe(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	if err := s.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Probes runs every probe and returns the first failure.
type Probes []HealthService

// Probe implements the HealthService interface.
func (p Probes) Probe(ctx context.Context) error {
	for _, h := range p {
		if err := h.Probe(ctx); err != nil {
			return err
		}
	}
	return nil
}
