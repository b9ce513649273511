package pending

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Context {
	return Context{
		CorrelationID: uuid.NewString(),
		Reference:     "TIP-1",
		Kind:          "tip",
		PayerID:       1,
		PayeeID:       7,
		AmountCents:   2500,
		Label:         "25.00",
	}
}

func exercise(t *testing.T, s Store) {
	ctx := context.Background()
	c := sample()

	_, err := s.Get(ctx, c.CorrelationID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, c, time.Minute))
	got, err := s.Get(ctx, c.CorrelationID)
	require.NoError(t, err)
	assert.Equal(t, c, *got)

	require.NoError(t, s.Delete(ctx, c.CorrelationID))
	_, err = s.Get(ctx, c.CorrelationID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exercise(t, NewMemoryStore())
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }

	a, b := sample(), sample()
	require.NoError(t, m.Put(ctx, a, time.Minute))
	require.NoError(t, m.Put(ctx, b, time.Hour))

	now = now.Add(2 * time.Minute)
	_, err := m.Get(ctx, a.CorrelationID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, m.Sweep())
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, m.Sweep())
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL is not set, skip redis integration test")
	}
	s, err := NewRedisStore(context.Background(), url)
	require.NoError(t, err)
	defer s.Close()
	exercise(t, s)
}
