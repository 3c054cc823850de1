package sensor

import (
	"fmt"
	"strings"
)

// LEDColor is the value written to ParamLED.
type LEDColor int

// LED colours.
const (
	LEDOff   LEDColor = 0
	LEDGreen LEDColor = 1
	LEDRed   LEDColor = 2
)

// String returns the lower-case colour name.
func (c LEDColor) String() string {
	switch c {
	case LEDOff:
		return "off"
	case LEDGreen:
		return "green"
	case LEDRed:
		return "red"
	default:
		return fmt.Sprintf("led(%d)", int(c))
	}
}

// ParseLEDColor parses "off", "green" or "red" (case-insensitive).
func ParseLEDColor(s string) (LEDColor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return LEDOff, nil
	case "green":
		return LEDGreen, nil
	case "red":
		return LEDRed, nil
	default:
		return LEDOff, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}
