// Package pending keeps the short-lived checkout context the success page shows
// before the charge has been finalized.
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// ErrNotFound is returned for unknown or expired correlation ids.
var ErrNotFound = errors.New("pending: context not found")

// Context is what the success page needs to render a confirmation.
type Context struct {
	CorrelationID string `json:"correlation_id"`
	Reference     string `json:"reference"`
	Kind          string `json:"kind"`
	PayerID       int64  `json:"payer_id"`
	PayeeID       int64  `json:"payee_id"`
	AmountCents   int64  `json:"amount_cents"`
	Label         string `json:"label"`
}

// Store persists contexts keyed by correlation id.
type Store interface {
	Put(ctx context.Context, c Context, ttl time.Duration) error
	Get(ctx context.Context, correlationID string) (*Context, error)
	Delete(ctx context.Context, correlationID string) error
}

type entry struct {
	value     Context
	expiresAt time.Time
}

// MemoryStore is the single-instance fallback used when no Redis is configured.
type MemoryStore struct {
	entries *xsync.Map[string, entry]
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: xsync.NewMap[string, entry](),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, c Context, ttl time.Duration) error {
	m.entries.Store(c.CorrelationID, entry{value: c, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryStore) Get(_ context.Context, correlationID string) (*Context, error) {
	e, ok := m.entries.Load(correlationID)
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(e.expiresAt) {
		m.entries.Delete(correlationID)
		return nil, ErrNotFound
	}
	c := e.value
	return &c, nil
}

func (m *MemoryStore) Delete(_ context.Context, correlationID string) error {
	m.entries.Delete(correlationID)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	now := m.now()
	removed := 0
	m.entries.Range(func(key string, e entry) bool {
		if now.After(e.expiresAt) {
			m.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}
