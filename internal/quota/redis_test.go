package quota_test

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tophand-tech/dayplan/backend/internal/quota"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("container start: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })

	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisStore(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	now := time.Date(2025, time.June, 1, 23, 0, 0, 0, time.UTC)
	counter := quota.NewDailyCounter(quota.NewRedisStore(rdb), 2, quota.WithClock(func() time.Time { return now }))

	for i := 1; i <= 2; i++ {
		usage, err := counter.Allow(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, int64(i), usage.Used)
	}
	_, err := counter.Allow(ctx, "tenant-a")
	assert.ErrorIs(t, err, quota.ErrExceeded)

	// the key outlives midnight by an hour
	ttl, err := rdb.TTL(ctx, "dayplan:quota:tenant-a:2025-06-01").Result()
	require.NoError(t, err)
	assert.InDelta(t, (2 * time.Hour).Seconds(), ttl.Seconds(), 5)

	now = now.Add(2 * time.Hour)
	usage, err := counter.Allow(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Used)
}
