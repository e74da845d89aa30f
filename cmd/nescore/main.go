// Package main implements the nescore NES emulator executable.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nescore/internal/bus"
	"nescore/internal/config"
	"nescore/internal/graphics"
	"nescore/internal/joypad"
	"nescore/internal/version"
)

// cyclesPerFrame approximates one NTSC frame's worth of CPU cycles
// (29780.5, rounded) for the headless mode's progress reporting.
const cyclesPerFrame = 29781

func main() {
	var (
		romFile    = flag.String("rom", "", "Path to NES ROM file")
		configFile = flag.String("config", "", "Path to configuration file")
		headless   = flag.Bool("headless", false, "Run without a window, for testing or automation")
		help       = flag.Bool("help", false, "Show help message")
		showVer    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *help {
		printUsage()
		os.Exit(0)
	}
	if *showVer {
		version.PrintBuildInfo()
		os.Exit(0)
	}

	setupGracefulShutdown()

	if *romFile == "" {
		log.Fatal("a ROM file is required: -rom <file>")
	}

	cfg := config.New()
	if *configFile != "" {
		if err := cfg.LoadFromFile(*configFile); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	romData, err := os.ReadFile(*romFile)
	if err != nil {
		log.Fatalf("failed to read ROM file: %v", err)
	}

	nes := bus.New()
	if err := nes.LoadROM(romData); err != nil {
		log.Fatalf("failed to load ROM: %v", err)
	}
	nes.Reset()

	if *headless {
		runHeadless(nes)
		return
	}

	if err := runGUI(nes, cfg); err != nil {
		log.Fatalf("GUI mode failed: %v", err)
	}
}

// runHeadless runs 120 frames (roughly two seconds of NTSC playback) with no
// window, dumping a handful of frames to disk for inspection.
func runHeadless(nes *bus.NES) {
	backend := graphics.NewHeadlessBackend()
	if err := backend.Initialize(graphics.Config{Headless: true}); err != nil {
		log.Fatalf("failed to initialize headless backend: %v", err)
	}
	window, err := backend.CreateWindow("nescore", 256, 240)
	if err != nil {
		log.Fatalf("failed to create headless window: %v", err)
	}

	const targetFrames = 120
	for frame := 0; frame < targetFrames; frame++ {
		for cycles := 0; cycles < cyclesPerFrame; {
			k, err := nes.Tick()
			if err != nil {
				log.Fatalf("emulation error at frame %d: %v", frame+1, err)
			}
			cycles += int(k)
		}
		for !nes.FrameReady() {
			if _, err := nes.Tick(); err != nil {
				log.Fatalf("emulation error at frame %d: %v", frame+1, err)
			}
		}
		if err := window.RenderFrame(nes.PixelBuffer()); err != nil {
			log.Fatalf("failed to render frame %d: %v", frame+1, err)
		}
	}

	fmt.Printf("headless run complete: %d frames\n", targetFrames)
}

// runGUI drives the Ebitengine window loop, feeding emulator frames to the
// screen and window input events to both joypads.
func runGUI(nes *bus.NES, cfg *config.Config) error {
	backend := graphics.NewEbitengineBackend()
	gfxConfig := graphics.Config{
		WindowTitle:  "nescore",
		WindowWidth:  cfg.Window.Width,
		WindowHeight: cfg.Window.Height,
		Fullscreen:   cfg.Window.Fullscreen,
		VSync:        cfg.Window.VSync,
		Filter:       "nearest",
		Bindings: graphics.KeyBindings{
			Player1: keyMappingToButtonKeys(cfg.Input.Player1Keys),
			Player2: keyMappingToButtonKeys(cfg.Input.Player2Keys),
		},
	}
	if err := backend.Initialize(gfxConfig); err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}

	window, err := backend.CreateWindow("nescore", cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	ebitengineWindow, ok := graphics.AsEbitengineWindow(window)
	if !ok {
		return fmt.Errorf("unexpected window implementation")
	}

	ebitengineWindow.SetEmulatorUpdateFunc(func() error {
		for !nes.FrameReady() {
			if _, err := nes.Tick(); err != nil {
				return err
			}
		}
		applyInput(window.PollEvents(), nes.Joypad1(), nes.Joypad2())
		return window.RenderFrame(nes.PixelBuffer())
	})

	return ebitengineWindow.Run()
}

// keyMappingToButtonKeys adapts a config.KeyMapping to the shape the
// graphics package's key-to-button resolution expects.
func keyMappingToButtonKeys(k config.KeyMapping) graphics.ButtonKeys {
	return graphics.ButtonKeys{
		Up: k.Up, Down: k.Down, Left: k.Left, Right: k.Right,
		A: k.A, B: k.B, Start: k.Start, Select: k.Select,
	}
}

// applyInput folds a batch of window input events into both joypads' live
// button state.
func applyInput(events []graphics.InputEvent, pad1, pad2 *joypad.Joypad) {
	for _, event := range events {
		if event.Type != graphics.InputEventTypeButton {
			continue
		}
		if button, ok := player1Button(event.Button); ok {
			pad1.SetButton(button, event.Pressed)
		} else if button, ok := player2Button(event.Button); ok {
			pad2.SetButton(button, event.Pressed)
		}
	}
}

func player1Button(b graphics.Button) (joypad.Button, bool) {
	switch b {
	case graphics.ButtonA:
		return joypad.ButtonA, true
	case graphics.ButtonB:
		return joypad.ButtonB, true
	case graphics.ButtonSelect:
		return joypad.ButtonSelect, true
	case graphics.ButtonStart:
		return joypad.ButtonStart, true
	case graphics.ButtonUp:
		return joypad.ButtonUp, true
	case graphics.ButtonDown:
		return joypad.ButtonDown, true
	case graphics.ButtonLeft:
		return joypad.ButtonLeft, true
	case graphics.ButtonRight:
		return joypad.ButtonRight, true
	default:
		return 0, false
	}
}

func player2Button(b graphics.Button) (joypad.Button, bool) {
	switch b {
	case graphics.Button2A:
		return joypad.ButtonA, true
	case graphics.Button2B:
		return joypad.ButtonB, true
	case graphics.Button2Select:
		return joypad.ButtonSelect, true
	case graphics.Button2Start:
		return joypad.ButtonStart, true
	case graphics.Button2Up:
		return joypad.ButtonUp, true
	case graphics.Button2Down:
		return joypad.ButtonDown, true
	case graphics.Button2Left:
		return joypad.ButtonLeft, true
	case graphics.Button2Right:
		return joypad.ButtonRight, true
	default:
		return 0, false
	}
}

// setupGracefulShutdown exits cleanly on SIGINT/SIGTERM.
func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Println("\ninterrupt received, shutting down")
		os.Exit(0)
	}()
}

func printUsage() {
	fmt.Println("nescore - NES emulator core")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  nescore -rom <file> [options]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("CONTROLS (Default):")
	fmt.Println("  Player 1:")
	fmt.Println("    WASD              - D-Pad")
	fmt.Println("    J                 - A Button")
	fmt.Println("    K                 - B Button")
	fmt.Println("    Enter             - Start")
	fmt.Println("    Space             - Select")
	fmt.Println("  Player 2:")
	fmt.Println("    Arrow Keys        - D-Pad")
	fmt.Println("    5 / 6             - A / B Button")
	fmt.Println("    7 / 8             - Start / Select")
	fmt.Println()
	fmt.Println("SUPPORTED FORMATS:")
	fmt.Println("  - iNES (.nes), NROM (Mapper 0) only")
}
