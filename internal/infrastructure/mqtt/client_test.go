package mqtt

import (
	"strings"
	"testing"

	"github.com/homewise/homewise-core/internal/infrastructure/config"
)

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("light_living"), "homewise/state/light_living"},
		{"state event", topics.StateEvent("sensor_bedroom_temp"), "homewise/event/state/sensor_bedroom_temp"},
		{"rule fired", topics.RuleFired("rule-7"), "homewise/rule/rule-7/fired"},
		{"scene activated", topics.SceneActivated("scene_sleep"), "homewise/scene/scene_sleep/activated"},
		{"system status", topics.SystemStatus(), "homewise/system/status"},
		{"all device states", topics.AllDeviceStates(), "homewise/state/+"},
		{"all state events", topics.AllStateEvents(), "homewise/event/state/+"},
		{"all topics", topics.AllTopics(), "homewise/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "homewise-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "homewise-test" {
		t.Errorf("ClientID = %q, want homewise-test", opts.ClientID)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			ClientID: "homewise-test",
			TLS:      true,
		},
	}

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("homewise-core")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload missing status: %s", online)
	}
	if !strings.Contains(online, `"client_id":"homewise-core"`) {
		t.Errorf("online payload missing client_id: %s", online)
	}

	offline := buildOfflinePayload("homewise-core")
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload missing reason: %s", offline)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v, want nil", err)
	}
}
