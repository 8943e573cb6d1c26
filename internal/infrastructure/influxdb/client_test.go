package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/homewise/homewise-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestWriteStateChange_NotConnected(t *testing.T) {
	c := &Client{}
	// Must be a no-op, not a panic, when disconnected
	c.WriteStateChange("light_living", "on", map[string]any{"brightness": 80})
	c.WriteSensorReading("sensor_bedroom_temp", 25.5, "°C")
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}

func TestBoolField(t *testing.T) {
	if boolField(true) != 1 || boolField(false) != 0 {
		t.Error("boolField mapping incorrect")
	}
}
