package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func requireServiceError(t *testing.T, err error, kind ErrorKind, code string) *Error {
	t.Helper()
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, kind, se.Kind, "kind")
	assert.Equal(t, code, se.Code, "code")
	assert.NotEmpty(t, se.Message)
	return se
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// memoryRollupCache is an in-process RollupCache
type memoryRollupCache struct {
	mu            sync.Mutex
	entries       map[string][]MonthRollup
	sets          int
	invalidations int
}

func newMemoryRollupCache() *memoryRollupCache {
	return &memoryRollupCache{entries: map[string][]MonthRollup{}}
}

func (c *memoryRollupCache) Get(_ context.Context, months []string) ([]MonthRollup, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[rollupKey(months)]
	return r, ok, nil
}

func (c *memoryRollupCache) Set(_ context.Context, months []string, r []MonthRollup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[rollupKey(months)] = r
	c.sets++
	return nil
}

func (c *memoryRollupCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string][]MonthRollup{}
	c.invalidations++
	return nil
}
