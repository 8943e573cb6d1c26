package assistant

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
)

// CommandIntent is the result of interpreting one utterance. Actions are
// ready for the dispatcher; Reply is the human-readable answer shown to
// the user regardless of dispatch outcome.
type CommandIntent struct {
	Matched bool              `json:"matched"`
	Actions []dispatch.Action `json:"actions"`
	Reply   string            `json:"reply"`
}

// fallbackReply is returned when no rule in the chain matches.
const fallbackReply = "抱歉，我没有理解您的指令。您可以尝试说：'开灯'、'关灯'、'开空调'、'设置温度25度'、'查看状态'、'睡眠模式'等。"

// DeviceSource provides the device snapshot matchers work against.
// The device registry satisfies this.
type DeviceSource interface {
	List() []device.Device
}

// Logger interface for interpreter operations.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// tempPattern extracts a temperature like "25度" or "25°c" from an
// already-lowercased utterance.
var tempPattern = regexp.MustCompile(`(\d+)度|(\d+)°c`)

// matcher is one link in the keyword chain: predicate over the
// lowercased utterance, handler over the device snapshot.
type matcher struct {
	match  func(input string) bool
	handle func(input string, devices []device.Device) CommandIntent
}

// Interpreter matches utterances against the keyword chain.
type Interpreter struct {
	devices DeviceSource
	advisor Advisor
	logger  Logger
	chain   []matcher
}

// NewInterpreter creates a command interpreter over the given device source.
func NewInterpreter(devices DeviceSource) *Interpreter {
	i := &Interpreter{
		devices: devices,
		advisor: NullAdvisor{},
		logger:  noopLogger{},
	}
	i.chain = []matcher{
		{i.matchLightsOn, i.lightsOn},
		{i.matchLightsOff, i.lightsOff},
		{i.matchACOn, i.acOn},
		{i.matchACOff, i.acOff},
		{i.matchSetTemperature, i.setTemperature},
		{i.matchStatus, i.status},
		{i.matchSleep, i.sleep},
		{i.matchArriveHome, i.arriveHome},
	}
	return i
}

// SetAdvisor installs an advisor consulted when no keyword rule matches.
func (i *Interpreter) SetAdvisor(a Advisor) {
	if a != nil {
		i.advisor = a
	}
}

// SetLogger sets the logger for interpreter operations.
func (i *Interpreter) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// Interpret resolves an utterance to a CommandIntent. The chain is
// evaluated in order and the first matching rule wins; unmatched
// utterances go to the advisor, then fall back to the help reply.
func (i *Interpreter) Interpret(ctx context.Context, utterance string) CommandIntent {
	input := strings.ToLower(strings.TrimSpace(utterance))
	snapshot := i.devices.List()

	for _, m := range i.chain {
		if m.match(input) {
			intent := m.handle(input, snapshot)
			i.logger.Debug("command matched", "utterance", utterance, "actions", len(intent.Actions))
			return intent
		}
	}

	if intent, err := i.advisor.Suggest(ctx, utterance, snapshot); err == nil && intent.Matched {
		i.logger.Debug("advisor handled command", "utterance", utterance)
		return intent
	}

	i.logger.Debug("command not understood", "utterance", utterance)
	return CommandIntent{Matched: false, Reply: fallbackReply}
}

func (i *Interpreter) matchLightsOn(input string) bool {
	return strings.Contains(input, "开灯") || strings.Contains(input, "打开灯")
}

func (i *Interpreter) lightsOn(_ string, devices []device.Device) CommandIntent {
	var actions []dispatch.Action
	count := 0
	for _, d := range devices {
		if d.Type != device.TypeLight {
			continue
		}
		count++
		actions = append(actions,
			dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOn},
			dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpSetProperty, Key: "brightness", Value: float64(80)},
		)
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   fmt.Sprintf("已为您开启%d盏灯", count),
	}
}

func (i *Interpreter) matchLightsOff(input string) bool {
	return strings.Contains(input, "关灯") || strings.Contains(input, "关闭灯")
}

func (i *Interpreter) lightsOff(_ string, devices []device.Device) CommandIntent {
	var actions []dispatch.Action
	count := 0
	for _, d := range devices {
		if d.Type != device.TypeLight {
			continue
		}
		count++
		actions = append(actions, dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOff})
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   fmt.Sprintf("已为您关闭%d盏灯", count),
	}
}

func (i *Interpreter) matchACOn(input string) bool {
	return strings.Contains(input, "空调") &&
		(strings.Contains(input, "开") || strings.Contains(input, "打开"))
}

func (i *Interpreter) acOn(_ string, devices []device.Device) CommandIntent {
	var actions []dispatch.Action
	for _, d := range devices {
		if d.Type != device.TypeAirConditioner {
			continue
		}
		actions = append(actions,
			dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOn},
			dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpSetProperty, Key: "temperature", Value: float64(24)},
		)
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   "已为您开启空调，温度设置为24°C",
	}
}

func (i *Interpreter) matchACOff(input string) bool {
	return strings.Contains(input, "空调") &&
		(strings.Contains(input, "关") || strings.Contains(input, "关闭"))
}

func (i *Interpreter) acOff(_ string, devices []device.Device) CommandIntent {
	var actions []dispatch.Action
	for _, d := range devices {
		if d.Type != device.TypeAirConditioner {
			continue
		}
		actions = append(actions, dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOff})
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   "已为您关闭空调",
	}
}

func (i *Interpreter) matchSetTemperature(input string) bool {
	return strings.Contains(input, "温度") && tempPattern.MatchString(input)
}

func (i *Interpreter) setTemperature(input string, devices []device.Device) CommandIntent {
	groups := tempPattern.FindStringSubmatch(input)
	raw := groups[1]
	if raw == "" {
		raw = groups[2]
	}
	temp, _ := strconv.Atoi(raw)

	var actions []dispatch.Action
	for _, d := range devices {
		if d.Type != device.TypeAirConditioner {
			continue
		}
		actions = append(actions,
			dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOn},
			dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpSetProperty, Key: "temperature", Value: float64(temp)},
		)
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   fmt.Sprintf("已将空调温度设置为%d°C", temp),
	}
}

func (i *Interpreter) matchStatus(input string) bool {
	return strings.Contains(input, "状态") || strings.Contains(input, "情况")
}

func (i *Interpreter) status(_ string, devices []device.Device) CommandIntent {
	on := 0
	for _, d := range devices {
		if d.Status == device.StatusOn {
			on++
		}
	}
	return CommandIntent{
		Matched: true,
		Reply:   fmt.Sprintf("当前有%d个设备开启，共%d个设备。所有设备运行正常。", on, len(devices)),
	}
}

func (i *Interpreter) matchSleep(input string) bool {
	return strings.Contains(input, "睡眠模式") || strings.Contains(input, "晚安")
}

func (i *Interpreter) sleep(_ string, devices []device.Device) CommandIntent {
	var actions []dispatch.Action
	for _, d := range devices {
		switch d.Type {
		case device.TypeLight:
			actions = append(actions, dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOff})
		case device.TypeAirConditioner:
			actions = append(actions, dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpSetProperty, Key: "temperature", Value: float64(26)})
		}
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   "已启动睡眠模式：关闭所有灯光，空调调至26°C",
	}
}

func (i *Interpreter) matchArriveHome(input string) bool {
	return strings.Contains(input, "回家模式") || strings.Contains(input, "我回来了")
}

func (i *Interpreter) arriveHome(_ string, devices []device.Device) CommandIntent {
	var actions []dispatch.Action
	for _, d := range devices {
		switch {
		case d.Type == device.TypeLight && d.Room == device.RoomLivingRoom:
			actions = append(actions,
				dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOn},
				dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpSetProperty, Key: "brightness", Value: float64(60)},
			)
		case d.Type == device.TypeAirConditioner:
			actions = append(actions,
				dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpTurnOn},
				dispatch.Action{DeviceID: d.ID, Operation: dispatch.OpSetProperty, Key: "temperature", Value: float64(24)},
			)
		}
	}
	return CommandIntent{
		Matched: true,
		Actions: actions,
		Reply:   "欢迎回家！已为您开启客厅灯光和空调",
	}
}
