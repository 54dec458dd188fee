package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisfin/txmonitor/internal/aggregates"
)

func TestUnknownAccountReportsZero(t *testing.T) {
	store := aggregates.NewMemoryAggregateStore()
	ctx := context.Background()

	total, err := store.Total24h(ctx, "never-seen")
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	count, err := store.Count1h(ctx, "never-seen")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWindowsAccumulate(t *testing.T) {
	store := aggregates.NewMemoryAggregateStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, "acct-1", "tx-1", decimal.RequireFromString("4000.00"), now.Add(-2*time.Hour)))
	require.NoError(t, store.Record(ctx, "acct-1", "tx-2", decimal.RequireFromString("5600.00"), now.Add(-30*time.Minute)))
	require.NoError(t, store.Record(ctx, "acct-2", "tx-3", decimal.RequireFromString("100.00"), now))

	total, err := store.Total24h(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("9600.00")), "total = %s", total)

	// only the 30-minute-old transaction is inside the 1h window
	count, err := store.Count1h(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestWindowsPruneExpiredEntries(t *testing.T) {
	store := aggregates.NewMemoryAggregateStore()
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return base }

	require.NoError(t, store.Record(ctx, "acct-1", "tx-old", decimal.RequireFromString("9000.00"), base.Add(-23*time.Hour)))
	require.NoError(t, store.Record(ctx, "acct-1", "tx-new", decimal.RequireFromString("500.00"), base))

	total, err := store.Total24h(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("9500.00")))

	// advance the clock past the old entry's window
	store.Now = func() time.Time { return base.Add(2 * time.Hour) }

	total, err = store.Total24h(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("500.00")), "total = %s", total)

	count, err := store.Count1h(ctx, "acct-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConcurrentRecordAndRead(t *testing.T) {
	store := aggregates.NewMemoryAggregateStore()
	ctx := context.Background()
	now := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_ = store.Record(ctx, "acct-1", "tx", decimal.NewFromInt(1), now)
		}
	}()
	for i := 0; i < 100; i++ {
		_, err := store.Total24h(ctx, "acct-1")
		require.NoError(t, err)
	}
	<-done

	total, err := store.Total24h(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(100)))
}
