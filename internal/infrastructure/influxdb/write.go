package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteStateChange records a device state transition.
//
// One point is written per change: the status is stored as a tag plus a
// 0/1 field, and every numeric property is stored as its own field. The
// write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "light_living")
//   - status: The device status after the change ("on", "off", "unknown")
//   - properties: The device properties after the change; numeric values
//     are recorded, everything else is skipped
//
// Example:
//
//	client.WriteStateChange("light_living", "on", map[string]any{"brightness": 80})
func (c *Client) WriteStateChange(deviceID string, status string, properties map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"on": boolField(status == "on"),
	}
	for key, val := range properties {
		switch v := val.(type) {
		case float64:
			fields[key] = v
		case int:
			fields[key] = float64(v)
		case bool:
			fields[key] = boolField(v)
		}
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSensorReading writes a single sensor measurement.
//
// Used for the event path: external gateways report readings which are
// recorded alongside the state change.
//
// Parameters:
//   - deviceID: Sensor identifier
//   - value: The numeric reading
//   - unit: Measurement unit (e.g., "°C"); stored as a tag
func (c *Client) WriteSensorReading(deviceID string, value float64, unit string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"sensor_reading",
		tags,
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// boolField converts a boolean to 0/1 for numeric field storage.
func boolField(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
