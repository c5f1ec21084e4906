package services

import (
	"context"
	"errors"
	"testing"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedTestForCustomerIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.registerCustomer(t, "09123456789", "pkg-home")

	reply := env.router.Handle(ctx, testUser, "speedtest")
	assert.Contains(t, reply, "Download: 10.00 MB/s")
	assert.Contains(t, reply, "Upload: 5.00 MB/s")
	assert.Contains(t, reply, "Ping: 12 ms")

	sent := env.outbound.Messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Running speed test")

	tests, err := env.store.RecentSpeedTests(ctx, customer.CustomerID, 5)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, 80.0, tests[0].DownloadMbps)
	env.noSession(t, testUser)
}

func TestSpeedTestForGuestIsNotRecorded(t *testing.T) {
	env := newTestEnv(t)

	reply := env.router.Handle(context.Background(), testUser, "speed test")
	assert.Contains(t, reply, "Speed Test Results")
	assert.Equal(t, 1, env.meter.calls)
	env.noSession(t, testUser)
}

func TestSpeedTestFailure(t *testing.T) {
	env := newTestEnv(t)
	env.meter.err = errors.New("no route to server")

	reply := env.router.Handle(context.Background(), testUser, "speedtest")
	assert.Contains(t, reply, "Speed test failed")
}

func TestSpeedTestHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	assert.Equal(t, MsgRegisterFirst, env.router.Handle(ctx, testUser, "history"))

	customer := env.registerCustomer(t, "09123456789", "pkg-home")
	assert.Contains(t, env.router.Handle(ctx, testUser, "history"), "No speed test history")

	for i := 1; i <= 7; i++ {
		require.NoError(t, env.store.SaveSpeedTest(ctx, &models.SpeedTest{
			CustomerID:   customer.CustomerID,
			DownloadMbps: float64(i * 8),
			UploadMbps:   8,
			PingMs:       10,
		}))
	}

	reply := env.router.Handle(ctx, testUser, "history")
	assert.Contains(t, reply, "1. 10-01-2025 10:00\n   ⬇️ 7.00 MB/s")
	assert.Contains(t, reply, "5. ")
	assert.NotContains(t, reply, "6. ")
	assert.NotContains(t, reply, "⬇️ 1.00 MB/s")
}
