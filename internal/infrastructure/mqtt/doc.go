// Package mqtt provides MQTT client connectivity for Homewise Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Homewise uses MQTT as the event transport between the Core and external
// collaborators (sensor gateways, device firmware, dashboards). The Core
// publishes canonical device state after every applied mutation and accepts
// externally reported state changes, which flow through the dispatcher like
// any other batch.
//
//	Homewise Core ↔ MQTT Broker ↔ Device Gateways / Dashboards
//
// # Topics
//
//	homewise/state/{device_id}    canonical state, retained, published by Core
//	homewise/event/state/+        state reports from external gateways
//	homewise/system/status        Core online/offline status (LWT)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllStateEvents(), 1, handler)
package mqtt
