// Package bus wires the CPU, PPU, cartridge and joypads together and drives
// the cycle-accurate 1:3 CPU:PPU tick ratio, NMI servicing, and OAM DMA.
package bus

import (
	"bytes"

	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/joypad"
	"nescore/internal/membus"
	"nescore/internal/ppu"
)

const oamDMAStallCycles = 513

// NES is the complete emulation core: the host's sole entry point.
type NES struct {
	cpu  *cpu.CPU
	ppu  *ppu.PPU
	cart *cartridge.Cartridge

	cpuBus *membus.CPUBus
	ppuBus *membus.PPUBus

	pad1 *joypad.Joypad
	pad2 *joypad.Joypad

	pendingDMA     bool
	pendingDMAPage uint8
}

// New constructs an NES core with no cartridge attached. LoadROM must be
// called before Tick.
func New() *NES {
	return &NES{
		pad1: &joypad.Joypad{},
		pad2: &joypad.Joypad{},
	}
}

// LoadROM parses an iNES image and attaches the resulting cartridge,
// rebuilding the CPU and PPU buses around it.
func (n *NES) LoadROM(data []uint8) error {
	cart, err := cartridge.Load(bytes.NewReader(data))
	if err != nil {
		return err
	}
	n.cart = cart
	n.ppuBus = membus.NewPPUBus(cart)
	n.ppu = ppu.New(n.ppuBus)
	n.cpuBus = membus.NewCPUBus(n.ppu, cart, n.pad1, n.pad2)
	n.cpuBus.SetDMACallback(func(page uint8) {
		n.pendingDMA = true
		n.pendingDMAPage = page
	})
	n.cpu = cpu.New(n.cpuBus)
	return nil
}

// Reset performs the CPU's warm-reset sequence.
func (n *NES) Reset() {
	n.cpu.Reset()
}

// Tick advances the core by one CPU instruction and its 3x PPU ticks,
// servicing any NMI raised during those ticks and running OAM DMA if the
// instruction triggered one.
func (n *NES) Tick() (uint8, error) {
	k, err := n.cpu.Step()
	if err != nil {
		return 0, err
	}

	extra := n.runPPUTicks(3 * int(k))
	n.runPPUTicks(extra)

	if n.pendingDMA {
		n.pendingDMA = false
		n.performOAMDMA(n.pendingDMAPage)
	}

	return k, nil
}

// runPPUTicks advances the PPU by count dots, servicing at most one NMI
// along the way, and returns how many extra ticks (0 or 6) the servicing
// owes the caller per the 7-cycle NMI latency model.
func (n *NES) runPPUTicks(count int) int {
	extra := 0
	for i := 0; i < count; i++ {
		n.ppu.Tick()
		if n.ppu.ShouldNMI {
			n.ppu.ShouldNMI = false
			n.cpu.NMI()
			extra = 6
		}
	}
	return extra
}

func (n *NES) performOAMDMA(page uint8) {
	for i := 0; i < 256; i++ {
		n.runPPUTicks(3)
		n.cpuBus.TransferOAMByte(page, uint8(i))
		n.runPPUTicks(3)
	}
	n.cpu.Cycles += oamDMAStallCycles
}

// FrameReady reports the one-shot vblank-entry edge, clearing it.
func (n *NES) FrameReady() bool {
	return n.ppu.FrameReady()
}

// PixelBuffer returns the 256x240 RGBA8 framebuffer as a read-only view.
func (n *NES) PixelBuffer() []uint8 {
	return n.ppu.Frame[:]
}

// Joypad1 and Joypad2 expose the two controllers for the host to drive.
func (n *NES) Joypad1() *joypad.Joypad { return n.pad1 }
func (n *NES) Joypad2() *joypad.Joypad { return n.pad2 }
