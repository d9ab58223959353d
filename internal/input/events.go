// Package input translates local host input into InputMessages for the
// streaming host.
package input

import (
	"time"

	"scenecast.dev/internal/protocol"
)

// HostEvent is a raw event from the local windowing layer, in logical
// (unscaled) pixels relative to the viewport origin.
//
// Implemented by PointerMoved, ButtonPressed, ButtonReleased, WheelScrolled,
// KeyPressed, KeyReleased and ViewportResized.
type HostEvent interface {
	hostEvent()
}

// DeltaMode is the unit of a wheel delta.
type DeltaMode uint8

const (
	DeltaPixel DeltaMode = iota
	DeltaLine
	DeltaPage
)

type PointerMoved struct {
	X, Y      float32
	Modifiers protocol.Modifiers
}

// ButtonPressed.At is used for multi-click detection; the dispatcher clock is
// used when it is zero.
type ButtonPressed struct {
	Button    uint32
	X, Y      float32
	Modifiers protocol.Modifiers
	At        time.Time
}

type ButtonReleased struct {
	Button    uint32
	X, Y      float32
	Modifiers protocol.Modifiers
}

type WheelScrolled struct {
	X, Y      float32
	DX, DY    float32
	Mode      DeltaMode
	Modifiers protocol.Modifiers
}

type KeyPressed struct {
	Key       string
	Modifiers protocol.Modifiers
}

type KeyReleased struct {
	Key       string
	Modifiers protocol.Modifiers
}

type ViewportResized struct {
	Width, Height float32
	ScaleFactor   float32
}

func (PointerMoved) hostEvent()    {}
func (ButtonPressed) hostEvent()   {}
func (ButtonReleased) hostEvent()  {}
func (WheelScrolled) hostEvent()   {}
func (KeyPressed) hostEvent()      {}
func (KeyReleased) hostEvent()     {}
func (ViewportResized) hostEvent() {}
