// Package telemetry collects lightweight counters and exposes the logging
// seams server components depend on.
package telemetry

import (
	"log"
	"sort"
	"sync"
)

// Logger exposes the logging capabilities required by server components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Metrics exposes the telemetry methods required by server components.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// CounterSet is a concrete Metrics backed by a keyed counter map. A nil
// CounterSet discards every update.
type CounterSet struct {
	mu       sync.RWMutex
	counters map[string]uint64
}

// NewCounterSet builds an empty counter set.
func NewCounterSet() *CounterSet {
	return &CounterSet{counters: make(map[string]uint64)}
}

// Add increments a counter.
func (c *CounterSet) Add(key string, delta uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[key] += delta
	c.mu.Unlock()
}

// Store overwrites a counter, for gauges like current population.
func (c *CounterSet) Store(key string, value uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.counters[key] = value
	c.mu.Unlock()
}

// Value reads one counter.
func (c *CounterSet) Value(key string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[key]
}

// Snapshot copies every counter for diagnostics endpoints.
func (c *CounterSet) Snapshot() map[string]uint64 {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	copied := make(map[string]uint64, len(c.counters))
	for k, v := range c.counters {
		copied[k] = v
	}
	return copied
}

// Keys lists the counter names in sorted order.
func (c *CounterSet) Keys() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.counters))
	for k := range c.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type nopMetrics struct{}

func (nopMetrics) Add(string, uint64)   {}
func (nopMetrics) Store(string, uint64) {}

// NopMetrics returns a Metrics that drops everything.
func NopMetrics() Metrics {
	return nopMetrics{}
}
