package protocol

// Modifiers is the keyboard modifier state at the time of an input event.
type Modifiers struct {
	Control bool `json:"control,omitempty"`
	Alt     bool `json:"alt,omitempty"`
	Shift   bool `json:"shift,omitempty"`
	Meta    bool `json:"meta,omitempty"`
}

// Mouse buttons as reported by browsers.
const (
	ButtonLeft   uint32 = 0
	ButtonMiddle uint32 = 1
	ButtonRight  uint32 = 2
)

// InputMessage carries exactly one Input variant. A nil Event encodes as an
// empty message.
type InputMessage struct {
	Event Input
}

// Input is implemented by MouseMove, MouseDown, MouseUp, Scroll, KeyDown,
// KeyUp and Resize.
type Input interface {
	InputKind() string
}

type MouseMove struct {
	Position  Point
	Modifiers Modifiers
}

type MouseDown struct {
	Button     uint32
	Position   Point
	ClickCount uint32
	Modifiers  Modifiers
}

type MouseUp struct {
	Button    uint32
	Position  Point
	Modifiers Modifiers
}

type Scroll struct {
	Position  Point
	Delta     Point
	Modifiers Modifiers
}

type KeyDown struct {
	Key       string
	Modifiers Modifiers
}

type KeyUp struct {
	Key       string
	Modifiers Modifiers
}

type Resize struct {
	Size        Size
	ScaleFactor float32
}

func (MouseMove) InputKind() string { return "mouse_move" }
func (MouseDown) InputKind() string { return "mouse_down" }
func (MouseUp) InputKind() string   { return "mouse_up" }
func (Scroll) InputKind() string    { return "scroll" }
func (KeyDown) InputKind() string   { return "key_down" }
func (KeyUp) InputKind() string     { return "key_up" }
func (Resize) InputKind() string    { return "resize" }

// Kind names the carried variant, or "empty".
func (m InputMessage) Kind() string {
	if m.Event == nil {
		return "empty"
	}
	return m.Event.InputKind()
}
