package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*RateLimitRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := NewRateLimitRepository(client, SlidingWindowConfig{
		KeyPrefix: "test:rate_limit",
		TTL:       time.Minute,
	})
	return repo, srv
}

func TestRecordAndCountAttempts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.RecordAttempt(ctx, "203.0.113.7", base.Add(time.Duration(i)*time.Second)))
	}

	count, err := repo.CountAttempts(ctx, "203.0.113.7", time.Minute, base.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// A different identifier has its own window.
	count, err = repo.CountAttempts(ctx, "198.51.100.9", time.Minute, base.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCountAttemptsExcludesOutsideWindow(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordAttempt(ctx, "id", base))
	require.NoError(t, repo.RecordAttempt(ctx, "id", base.Add(90*time.Second)))

	count, err := repo.CountAttempts(ctx, "id", time.Minute, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCountAttemptsRejectsNonPositiveWindow(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.CountAttempts(context.Background(), "id", 0, time.Now())
	assert.Error(t, err)
}

func TestTrimWindowDropsStaleAttempts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordAttempt(ctx, "id", base))
	require.NoError(t, repo.RecordAttempt(ctx, "id", base.Add(2*time.Minute)))

	require.NoError(t, repo.TrimWindow(ctx, "id", time.Minute, base.Add(2*time.Minute)))

	// The stale entry is gone even when counting over a wide window.
	count, err := repo.CountAttempts(ctx, "id", time.Hour, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOldestAttempt(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	_, found, err := repo.OldestAttempt(ctx, "id", time.Minute, base)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.RecordAttempt(ctx, "id", base.Add(10*time.Second)))
	require.NoError(t, repo.RecordAttempt(ctx, "id", base.Add(30*time.Second)))

	oldest, found, err := repo.OldestAttempt(ctx, "id", time.Minute, base.Add(40*time.Second))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, base.Add(10*time.Second), oldest)
}

func TestRecordAttemptSetsTTL(t *testing.T) {
	repo, srv := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.RecordAttempt(ctx, "id", base))

	ttl := srv.TTL("test:rate_limit:id")
	assert.Equal(t, time.Minute, ttl)
}
