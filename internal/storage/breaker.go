package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/scrypster/attune/pkg/types"
)

// ErrCircuitOpen is returned when the breaker is open and the underlying
// store is not being tried at all.
var ErrCircuitOpen = errors.New("record store circuit breaker is open")

// BreakerConfig holds the circuit-breaker thresholds for a wrapped
// record store.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip
	// the circuit. Default: 3
	MaxFailures uint32

	// Timeout is the duration the circuit stays open before
	// transitioning to half-open. Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of consecutive successes
	// required in half-open state to close the circuit again. Default: 2
	HalfOpenMaxSuccesses uint32
}

// DefaultBreakerConfig returns the default thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	}
}

// BreakerStore decorates a RecordStore with a circuit breaker so a
// failing database cannot stall every conversation turn. When the
// circuit is open, operations fail fast with ErrCircuitOpen; callers
// treat that like any other store failure (log and continue).
type BreakerStore struct {
	inner   RecordStore
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBreakerStore wraps the given store.
func NewBreakerStore(inner RecordStore, cfg BreakerConfig, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	bs := &BreakerStore{inner: inner, logger: logger}
	bs.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "record-store",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("record store breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return bs
}

// Save implements RecordStore.
func (bs *BreakerStore) Save(ctx context.Context, record *types.Record) error {
	_, err := bs.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, bs.inner.Save(ctx, record)
	})
	return translateBreakerErr(err)
}

// Query implements RecordStore.
func (bs *BreakerStore) Query(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error) {
	result, err := bs.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return bs.inner.Query(ctx, filter)
	})
	if err != nil {
		return nil, translateBreakerErr(err)
	}
	return result.([]*types.Record), nil
}

// Close implements RecordStore. Close bypasses the breaker: shutdown
// must release connections even when the circuit is open.
func (bs *BreakerStore) Close() error {
	return bs.inner.Close()
}

// State returns the current breaker state: "closed", "open", or
// "half-open".
func (bs *BreakerStore) State() string {
	switch bs.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func translateBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}
