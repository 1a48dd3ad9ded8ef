package server

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Poller refreshes the device list on a fixed interval and publishes it.
type Poller struct {
	server   *Server
	interval time.Duration
	timeout  time.Duration
}

// NewPoller creates a poller for s. Each poll is bounded by the interval.
func NewPoller(s *Server, interval time.Duration) *Poller {
	return &Poller{server: s, interval: interval, timeout: interval}
}

// Run polls once immediately, then every interval until ctx is done.
// Failures are logged and the loop continues.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll performs a single refresh. It reports whether the refresh succeeded.
func (p *Poller) Poll(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	summaries, err := p.server.thermostat.ListDevices(ctx)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return false
		}
		p.server.logger.Error("Poll failed", zap.Error(err))
		return false
	}

	p.server.logger.Debug("Poll complete",
		zap.Int("devices", len(summaries)),
		zap.Duration("duration", time.Since(start)),
	)
	p.server.publish(summaries)
	return true
}
