package idle

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownSignal is returned when an event name is not a monitored signal.
var ErrUnknownSignal = errors.New("unknown activity signal")

// Signal is a user-interaction event that counts as activity.
type Signal int

const (
	SignalPointerDown Signal = iota + 1
	SignalPointerMove
	SignalKeyDown
	SignalScroll
	SignalTouchStart
	SignalClick
)

// Signals lists every monitored signal.
var Signals = []Signal{
	SignalPointerDown,
	SignalPointerMove,
	SignalKeyDown,
	SignalScroll,
	SignalTouchStart,
	SignalClick,
}

var signalNames = map[string]Signal{
	"mousedown":   SignalPointerDown,
	"pointerdown": SignalPointerDown,
	"mousemove":   SignalPointerMove,
	"pointermove": SignalPointerMove,
	"keydown":     SignalKeyDown,
	"scroll":      SignalScroll,
	"touchstart":  SignalTouchStart,
	"click":       SignalClick,
}

// ParseSignal maps a DOM event name to a Signal.
func ParseSignal(name string) (Signal, error) {
	if s, ok := signalNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

// Valid reports whether s is one of the monitored signals.
func (s Signal) Valid() bool {
	return s >= SignalPointerDown && s <= SignalClick
}

func (s Signal) String() string {
	switch s {
	case SignalPointerDown:
		return "pointerdown"
	case SignalPointerMove:
		return "pointermove"
	case SignalKeyDown:
		return "keydown"
	case SignalScroll:
		return "scroll"
	case SignalTouchStart:
		return "touchstart"
	case SignalClick:
		return "click"
	default:
		return "unknown"
	}
}

// Visibility is the document visibility reported by the client.
type Visibility int

const (
	VisibilityVisible Visibility = iota + 1
	VisibilityHidden
)

// ParseVisibility maps a document.visibilityState value to a Visibility.
func ParseVisibility(name string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "visible":
		return VisibilityVisible, nil
	case "hidden":
		return VisibilityHidden, nil
	}
	return 0, fmt.Errorf("unknown visibility state %q", name)
}

func (v Visibility) String() string {
	switch v {
	case VisibilityVisible:
		return "visible"
	case VisibilityHidden:
		return "hidden"
	default:
		return "unknown"
	}
}
