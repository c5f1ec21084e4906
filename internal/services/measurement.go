package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/showwin/speedtest-go/speedtest"
)

// SpeedResult is one bandwidth measurement
type SpeedResult struct {
	DownloadMbps float64
	UploadMbps   float64
	PingMs       float64
	Server       string
}

// Measurement runs a bandwidth test. Implementations must honour ctx.
type Measurement interface {
	Measure(ctx context.Context) (*SpeedResult, error)
}

// SpeedtestNetMeter measures against the nearest speedtest.net server
type SpeedtestNetMeter struct {
	client *speedtest.Speedtest
}

// NewSpeedtestNetMeter creates a meter with the library defaults
func NewSpeedtestNetMeter() *SpeedtestNetMeter {
	return &SpeedtestNetMeter{client: speedtest.New()}
}

func (m *SpeedtestNetMeter) Measure(ctx context.Context) (*SpeedResult, error) {
	servers, err := m.client.FetchServerListContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch servers: %w", err)
	}
	targets, err := servers.FindServer(nil)
	if err != nil {
		return nil, fmt.Errorf("find server: %w", err)
	}
	if len(targets) == 0 {
		return nil, errors.New("no speedtest server available")
	}
	server := targets[0]

	if err := server.PingTestContext(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := server.DownloadTestContext(ctx); err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if err := server.UploadTestContext(ctx); err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	result := &SpeedResult{
		DownloadMbps: server.DLSpeed.Mbps(),
		UploadMbps:   server.ULSpeed.Mbps(),
		PingMs:       float64(server.Latency.Microseconds()) / 1000,
		Server:       fmt.Sprintf("%s (%s)", server.Sponsor, server.Name),
	}
	log.Printf("📶 Speed test via %s: %.2f/%.2f Mbps, %.1f ms", result.Server, result.DownloadMbps, result.UploadMbps, result.PingMs)
	return result, nil
}
