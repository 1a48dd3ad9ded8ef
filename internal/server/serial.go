package server

import (
	"context"
	"sync"

	"github.com/muurk/salusconnect/internal/salus"
)

// SerialThermostat guards a Thermostat with a mutex.
// salus.Client holds a single session and must not be called concurrently.
type SerialThermostat struct {
	mu    sync.Mutex
	inner Thermostat
}

// Serialize wraps t. Wrapping an already serialized value returns it unchanged.
func Serialize(t Thermostat) *SerialThermostat {
	if s, ok := t.(*SerialThermostat); ok {
		return s
	}
	return &SerialThermostat{inner: t}
}

func (s *SerialThermostat) ListDevices(ctx context.Context) ([]salus.DeviceSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ListDevices(ctx)
}

func (s *SerialThermostat) DeviceState(ctx context.Context, id string) (salus.DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.DeviceState(ctx, id)
}

func (s *SerialThermostat) UpdateTemperature(ctx context.Context, id string, value float64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.UpdateTemperature(ctx, id, value)
}
