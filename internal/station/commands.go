package station

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/sensor"
)

// commandTimeout bounds one command received over MQTT.
const commandTimeout = 10 * time.Second

// Command actions accepted on the command topic.
const (
	ActionStart = "start"
	ActionStop  = "stop"
	ActionLED   = "led"
	ActionBeep  = "beep"
	ActionSave  = "save"
)

// Command is the JSON payload of a station command.
//
//	{"action": "led", "color": "red"}
type Command struct {
	Action string `json:"action"`
	Color  string `json:"color,omitempty"`
}

// Details returns the command arguments for the audit log.
func (c Command) Details() map[string]any {
	if c.Color == "" {
		return nil
	}
	return map[string]any{"color": c.Color}
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	switch cmd.Action {
	case ActionStart, ActionStop, ActionBeep, ActionSave:
	case ActionLED:
		if _, err := sensor.ParseLEDColor(cmd.Color); err != nil {
			return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	case "":
		return Command{}, fmt.Errorf("%w: action is required", ErrInvalidCommand)
	default:
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
	return cmd, nil
}

// Execute runs a parsed command.
func (s *Station) Execute(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionStart:
		return s.StartCapture()
	case ActionStop:
		return s.StopCapture(ctx)
	case ActionLED:
		color, err := sensor.ParseLEDColor(cmd.Color)
		if err != nil {
			return err
		}
		return s.SetLED(ctx, color)
	case ActionBeep:
		return s.Beep(ctx)
	case ActionSave:
		_, err := s.SaveLast(ctx)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Action)
	}
}

// HandleCommand is an MQTT message handler for the station command topic.
func (s *Station) HandleCommand(topic string, payload []byte) error {
	cmd, err := ParseCommand(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err = s.Execute(ctx, cmd)
	s.Audit(ctx, audit.SourceMQTT, cmd.Action, cmd.Details(), err)
	if err != nil {
		return fmt.Errorf("command %s on %s: %w", cmd.Action, topic, err)
	}
	s.logger.Info("command executed", "action", cmd.Action, "topic", topic)
	return nil
}
