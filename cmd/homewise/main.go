// Homewise Core - Smart Home Control Platform
//
// This is the main entry point for the Homewise Core application.
// Homewise is a self-hosted smart home control core designed for:
//   - Offline-first operation (no cloud dependency)
//   - A single authoritative device state registry
//   - Rule-based automation and one-shot scenes
//   - External hub integration over MQTT
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/homewise/homewise-core/migrations"

	"github.com/homewise/homewise-core/internal/api"
	"github.com/homewise/homewise-core/internal/assistant"
	"github.com/homewise/homewise-core/internal/audit"
	"github.com/homewise/homewise-core/internal/automation"
	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
	"github.com/homewise/homewise-core/internal/infrastructure/config"
	"github.com/homewise/homewise-core/internal/infrastructure/database"
	"github.com/homewise/homewise-core/internal/infrastructure/influxdb"
	"github.com/homewise/homewise-core/internal/infrastructure/logging"
	"github.com/homewise/homewise-core/internal/infrastructure/mqtt"
	"github.com/homewise/homewise-core/internal/scene"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Homewise Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry: the authoritative in-memory state, backed by SQLite
	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log)
	if cfg.Devices.MinTemperature != 0 || cfg.Devices.MaxTemperature != 0 {
		devices.SetLimits(device.Limits{
			MinTemperature: cfg.Devices.MinTemperature,
			MaxTemperature: cfg.Devices.MaxTemperature,
		})
	}
	if cfg.Devices.StorageTimeout > 0 {
		devices.SetStorageTimeout(time.Duration(cfg.Devices.StorageTimeout) * time.Second)
	}
	if loadErr := devices.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading device registry: %w", loadErr)
	}
	log.Info("device registry initialised", "devices", devices.Stats().Total)

	// Dispatcher: all device mutations flow through here
	dispatcher := dispatch.New(devices)
	dispatcher.SetLogger(log)

	// Rule registry and engine
	rules := automation.NewRegistry(automation.NewSQLiteRepository(db.DB))
	rules.SetLogger(log)
	if loadErr := rules.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading rule registry: %w", loadErr)
	}
	log.Info("rule registry initialised", "rules", len(rules.List()))

	engine := automation.NewEngine(rules, dispatcher)
	engine.SetLogger(log)
	devices.Subscribe(engine.OnStateChange)

	// Scene registry and executor
	scenes := scene.NewRegistry(scene.NewSQLiteRepository(db.DB))
	scenes.SetLogger(log)
	if loadErr := scenes.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading scene registry: %w", loadErr)
	}
	log.Info("scene registry initialised", "scenes", len(scenes.List()))

	sceneExec := scene.NewExecutor(scenes, dispatcher)
	sceneExec.SetLogger(log)

	// Assistant interpreter for natural-language commands
	interpreter := assistant.NewInterpreter(devices)
	interpreter.SetLogger(log)

	// Activity log: records mutations, rule firings, scene activations,
	// commands, and logins on a background writer
	activityRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(activityRepo)
	recorder.SetLogger(log)
	recorder.Start(ctx)

	devices.Subscribe(func(sc device.StateChange) {
		recorder.Record(audit.Entry{
			Action:     audit.ActionDeviceState,
			EntityType: audit.EntityDevice,
			EntityID:   sc.Device.ID,
			Source:     "dispatcher",
			Details: map[string]any{
				"old_status": string(sc.OldStatus),
				"new_status": string(sc.NewStatus),
			},
		})
	})

	// API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Devices:     devices,
		Dispatcher:  dispatcher,
		Rules:       rules,
		Scenes:      scenes,
		SceneExec:   sceneExec,
		Interpreter: interpreter,
		Activity:    recorder,
		ActivityLog: activityRepo,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	hub := server.GetHub()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		if wireErr := wireMQTT(mqttClient, devices, dispatcher, byte(cfg.MQTT.QoS), log); wireErr != nil {
			return fmt.Errorf("wiring MQTT: %w", wireErr)
		}
	} else {
		log.Info("MQTT disabled")
	}

	// Rule firings and scene activations reach WebSocket and MQTT subscribers
	topics := mqtt.Topics{}
	engine.SetOnFired(func(rule automation.Rule, batch dispatch.BatchResult) {
		event := map[string]any{
			"rule_id": rule.ID,
			"name":    rule.Name,
			"applied": batch.AppliedCount(),
			"total":   len(batch.Results),
		}
		hub.Broadcast(api.ChannelRuleFired, event)
		recorder.Record(audit.Entry{
			Action:     audit.ActionRuleFired,
			EntityType: audit.EntityRule,
			EntityID:   rule.ID,
			Source:     "engine",
			Details:    event,
		})
		if mqttClient != nil {
			publishEvent(mqttClient, topics.RuleFired(rule.ID), event, log)
		}
	})
	sceneExec.SetOnActivated(func(s scene.Scene, batch dispatch.BatchResult) {
		event := map[string]any{
			"scene_id": s.ID,
			"name":     s.Name,
			"applied":  batch.AppliedCount(),
			"total":    len(batch.Results),
		}
		hub.Broadcast(api.ChannelSceneActivated, event)
		recorder.Record(audit.Entry{
			Action:     audit.ActionSceneActivated,
			EntityType: audit.EntityScene,
			EntityID:   s.ID,
			Source:     "executor",
			Details:    event,
		})
		if mqttClient != nil {
			publishEvent(mqttClient, topics.SceneActivated(s.ID), event, log)
		}
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		wireInflux(influxClient, devices)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Start the rule engine and the API server
	engine.Start(ctx)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Homewise Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEWISE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEWISE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// stateEventPayload is the body an external gateway publishes on
// homewise/event/state/{device_id}.
type stateEventPayload struct {
	Status     *device.Status `json:"status,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// wireMQTT connects the device registry and dispatcher to the broker.
//
// Outbound: every applied mutation is published retained on the canonical
// state topic, so late subscribers always see current state.
//
// Inbound: externally reported state changes flow through the dispatcher
// like any other mutation, so validation and per-device serialisation
// still apply.
func wireMQTT(client *mqtt.Client, devices *device.Registry, dispatcher *dispatch.Dispatcher, qos byte, log *logging.Logger) error {
	topics := mqtt.Topics{}

	devices.Subscribe(func(sc device.StateChange) {
		data, err := json.Marshal(sc.Device)
		if err != nil {
			log.Error("marshalling device state", "device_id", sc.Device.ID, "error", err)
			return
		}
		if pubErr := client.PublishRetained(topics.DeviceState(sc.Device.ID), data); pubErr != nil {
			log.Warn("publishing device state", "device_id", sc.Device.ID, "error", pubErr)
		}
	})

	return client.Subscribe(topics.AllStateEvents(), qos, func(topic string, payload []byte) error {
		deviceID := topic[strings.LastIndex(topic, "/")+1:]
		if deviceID == "" {
			return fmt.Errorf("state event topic %q missing device id", topic)
		}

		var event stateEventPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("decoding state event for %s: %w", deviceID, err)
		}

		actions := make([]dispatch.Action, 0, 1+len(event.Properties))
		if event.Status != nil {
			op := dispatch.OpTurnOff
			if *event.Status == device.StatusOn {
				op = dispatch.OpTurnOn
			}
			actions = append(actions, dispatch.Action{DeviceID: deviceID, Operation: op})
		}
		for key, value := range event.Properties {
			actions = append(actions, dispatch.Action{
				DeviceID:  deviceID,
				Operation: dispatch.OpSetProperty,
				Key:       key,
				Value:     value,
			})
		}
		if len(actions) == 0 {
			return nil
		}

		batch := dispatcher.Dispatch(context.Background(), actions)
		if !batch.AllApplied() {
			log.Warn("external state event partially applied",
				"device_id", deviceID,
				"applied", batch.AppliedCount(),
				"total", len(batch.Results),
			)
		}
		return nil
	})
}

// wireInflux records every applied mutation as a time-series point.
// Sensor readings additionally go to their own measurement so dashboards
// can graph raw values without unpacking state changes.
func wireInflux(client *influxdb.Client, devices *device.Registry) {
	devices.Subscribe(func(sc device.StateChange) {
		client.WriteStateChange(sc.Device.ID, string(sc.NewStatus), sc.Device.Properties)

		if sc.Device.Type != device.TypeSensor {
			return
		}
		if raw, ok := sc.Device.Properties["value"]; ok {
			if value, ok := toFloat(raw); ok {
				unit, _ := sc.Device.Properties["unit"].(string)
				client.WriteSensorReading(sc.Device.ID, value, unit)
			}
		}
	})
}

// publishEvent marshals and publishes a rule or scene event, logging
// failures instead of propagating them.
func publishEvent(client *mqtt.Client, topic string, event map[string]any, log *logging.Logger) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error("marshalling event", "topic", topic, "error", err)
		return
	}
	if err := client.Publish(topic, data, 1, false); err != nil {
		log.Warn("publishing event", "topic", topic, "error", err)
	}
}

// toFloat normalises the numeric types json.Unmarshal can produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
