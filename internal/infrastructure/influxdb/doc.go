// Package influxdb provides InfluxDB connectivity for Homewise Core.
//
// It wraps the official influxdb-client-go v2 library with Homewise-specific
// patterns for connection management, state-history writing, and health
// monitoring.
//
// # Purpose
//
// This package records time-series history for:
//   - Device state transitions (on/off)
//   - Numeric property changes (brightness, temperature, sensor values)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteStateChange("light_living", "on", map[string]any{"brightness": 80})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
package influxdb
