// Package graphics provides an abstraction layer for different rendering backends
package graphics

// Backend represents a graphics rendering backend (SDL2, Ebitengine, etc.)
type Backend interface {
	// Initialize initializes the graphics backend
	Initialize(config Config) error

	// CreateWindow creates a window for rendering (the headless backend
	// returns a window that draws nothing)
	CreateWindow(title string, width, height int) (Window, error)

	// Cleanup releases all resources
	Cleanup() error

	// IsHeadless returns true if running in headless mode
	IsHeadless() bool

	// GetName returns the backend name for identification
	GetName() string
}

// Window represents a rendering window
type Window interface {
	// SetTitle sets the window title
	SetTitle(title string)

	// GetSize returns window dimensions
	GetSize() (width, height int)

	// ShouldClose returns true if window should close
	ShouldClose() bool

	// SwapBuffers presents the rendered frame
	SwapBuffers()

	// PollEvents processes input events
	PollEvents() []InputEvent

	// RenderFrame renders a 256x240 RGBA8 NES frame buffer to the window
	RenderFrame(frameBuffer []uint8) error

	// Cleanup releases window resources
	Cleanup() error
}

// Config contains configuration for graphics backends
type Config struct {
	// Window configuration
	WindowTitle  string
	WindowWidth  int
	WindowHeight int
	Fullscreen   bool
	VSync        bool

	// Rendering configuration
	Filter       string // "nearest", "linear"
	AspectRatio  string // "4:3", "stretch"
	
	// Backend-specific options
	Headless     bool
	Debug        bool

	// Bindings maps host key names to NES controller buttons for both
	// controllers; see ParseKey for the recognized names.
	Bindings KeyBindings
}

// KeyBindings names the host key bound to each NES controller button, for
// both controllers.
type KeyBindings struct {
	Player1 ButtonKeys
	Player2 ButtonKeys
}

// ButtonKeys names the host key bound to each face/d-pad button.
type ButtonKeys struct {
	Up, Down, Left, Right, A, B, Start, Select string
}

// DefaultKeyBindings mirrors the key names internal/config.New uses, so a
// caller that never loads a config file still gets a sensible layout.
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Player1: ButtonKeys{Up: "W", Down: "S", Left: "A", Right: "D", A: "J", B: "K", Start: "Enter", Select: "Space"},
		Player2: ButtonKeys{Up: "Up", Down: "Down", Left: "Left", Right: "Right", A: "5", B: "6", Start: "7", Select: "8"},
	}
}

// ParseKey resolves a host key name (as stored in a KeyMapping) to the Key
// constant processInput scans for. Unrecognized names resolve to
// KeyUnknown, which no NES button is ever mapped to.
func ParseKey(name string) Key {
	switch name {
	case "Escape":
		return KeyEscape
	case "Enter":
		return KeyEnter
	case "Space":
		return KeySpace
	case "Up":
		return KeyUp
	case "Down":
		return KeyDown
	case "Left":
		return KeyLeft
	case "Right":
		return KeyRight
	case "W":
		return KeyW
	case "A":
		return KeyA
	case "S":
		return KeyS
	case "D":
		return KeyD
	case "J":
		return KeyJ
	case "K":
		return KeyK
	case "X":
		return KeyX
	case "Z":
		return KeyZ
	case "1":
		return Key1
	case "2":
		return Key2
	case "3":
		return Key3
	case "4":
		return Key4
	case "5":
		return Key5
	case "6":
		return Key6
	case "7":
		return Key7
	case "8":
		return Key8
	default:
		return KeyUnknown
	}
}

// buttonMapFromKeys builds the Key->Button table processInput uses from a
// controller's bound key names, folding both controllers into one map keyed
// by the resolved Key (button events carry no notion of "which controller"
// beyond which Button constant they report).
func buttonMapFromKeys(p1, p2 ButtonKeys) map[Key]Button {
	m := map[Key]Button{}
	add := func(keys ButtonKeys, up, down, left, right, a, b, start, select_ Button) {
		if k := ParseKey(keys.Up); k != KeyUnknown {
			m[k] = up
		}
		if k := ParseKey(keys.Down); k != KeyUnknown {
			m[k] = down
		}
		if k := ParseKey(keys.Left); k != KeyUnknown {
			m[k] = left
		}
		if k := ParseKey(keys.Right); k != KeyUnknown {
			m[k] = right
		}
		if k := ParseKey(keys.A); k != KeyUnknown {
			m[k] = a
		}
		if k := ParseKey(keys.B); k != KeyUnknown {
			m[k] = b
		}
		if k := ParseKey(keys.Start); k != KeyUnknown {
			m[k] = start
		}
		if k := ParseKey(keys.Select); k != KeyUnknown {
			m[k] = select_
		}
	}
	add(p1, ButtonUp, ButtonDown, ButtonLeft, ButtonRight, ButtonA, ButtonB, ButtonStart, ButtonSelect)
	add(p2, Button2Up, Button2Down, Button2Left, Button2Right, Button2A, Button2B, Button2Start, Button2Select)
	return m
}

// InputEvent represents an input event from the window
type InputEvent struct {
	Type      InputEventType
	Key       Key
	Button    Button
	Pressed   bool
	Modifiers ModifierKey
}

// InputEventType represents the type of input event
type InputEventType int

const (
	InputEventTypeKey InputEventType = iota
	InputEventTypeButton
	InputEventTypeQuit
)

// Key represents keyboard keys
type Key int

const (
	KeyUnknown Key = iota
	KeyEscape
	KeyEnter
	KeySpace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
	KeyX
	KeyZ
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
)

// Button represents controller buttons
type Button int

const (
	ButtonUnknown Button = iota
	ButtonA
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	// Player 2 controller buttons
	Button2A
	Button2B
	Button2Select
	Button2Start
	Button2Up
	Button2Down
	Button2Left
	Button2Right
)

// ModifierKey represents modifier keys
type ModifierKey int

const (
	ModifierNone  ModifierKey = 0
	ModifierShift ModifierKey = 1 << iota
	ModifierCtrl
	ModifierAlt
	ModifierSuper
)

// BackendType represents different graphics backend types
type BackendType string

const (
	BackendEbitengine BackendType = "ebitengine"
	BackendHeadless   BackendType = "headless"
)

// CreateBackend creates a graphics backend of the specified type
func CreateBackend(backendType BackendType) (Backend, error) {
	switch backendType {
	case BackendHeadless:
		return NewHeadlessBackend(), nil
	default:
		// Default to Ebitengine for GUI mode
		return NewEbitengineBackend(), nil
	}
}

// Helper type assertion functions

// AsEbitengineWindow tries to cast a Window to EbitengineWindow
func AsEbitengineWindow(window Window) (*EbitengineWindow, bool) {
	if ebitengineWindow, ok := window.(*EbitengineWindow); ok {
		return ebitengineWindow, true
	}
	return nil, false
}