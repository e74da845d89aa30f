// Package membus implements the two NES address spaces: the CPU's 64 KiB
// map (RAM, PPU register window, controller ports, OAM DMA, cartridge) and
// the PPU's 16 KiB map (pattern tables, nametables, palette RAM).
package membus

import "nescore/internal/cartridge"

// PPURegisters is the subset of the PPU the CPU bus talks to.
type PPURegisters interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
	DMAWriteByte(value uint8)
}

// Joypad is the subset of the controller the CPU bus talks to.
type Joypad interface {
	Read() uint8
	Strobe(high bool)
}

// CPUBus is the 64 KiB address space the 6502 sees: 2 KiB internal RAM
// mirrored to 8 KiB, the PPU register window mirrored every 8 bytes,
// controller ports at $4016/$4017, the OAM DMA port at $4014, and the
// cartridge PRG window at $4020-$FFFF.
type CPUBus struct {
	ram  [0x800]uint8
	ppu  PPURegisters
	cart *cartridge.Cartridge
	pad1 Joypad
	pad2 Joypad

	dmaCallback func(page uint8)
}

// NewCPUBus wires the CPU's view of RAM, the PPU, the cartridge and both
// controller ports together.
func NewCPUBus(ppu PPURegisters, cart *cartridge.Cartridge, pad1, pad2 Joypad) *CPUBus {
	return &CPUBus{ppu: ppu, cart: cart, pad1: pad1, pad2: pad2}
}

// SetDMACallback registers the handler invoked when the CPU writes to the
// OAM DMA port ($4014); the orchestrating bus uses this to interleave the
// 256 byte copies with PPU ticks and charge the 513-cycle stall.
func (b *CPUBus) SetDMACallback(cb func(page uint8)) {
	b.dmaCallback = cb
}

// Read implements cpu.Bus.
func (b *CPUBus) Read(addr uint16) uint8 {
	switch {
	case addr < 0x2000:
		return b.ram[addr&0x07FF]
	case addr < 0x4000:
		return b.ppu.ReadRegister(0x2000 + (addr & 0x0007))
	case addr == 0x4016:
		return b.pad1.Read()
	case addr == 0x4017:
		return b.pad2.Read()
	case addr < 0x4020:
		return 0 // APU/test registers: out of scope, reads as 0
	default:
		return b.cart.CPURead(addr)
	}
}

// Write implements cpu.Bus.
func (b *CPUBus) Write(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		b.ram[addr&0x07FF] = value
	case addr < 0x4000:
		b.ppu.WriteRegister(0x2000+(addr&0x0007), value)
	case addr == 0x4014:
		if b.dmaCallback != nil {
			b.dmaCallback(value)
		}
	case addr == 0x4016:
		b.pad1.Strobe(value&0x01 != 0)
		b.pad2.Strobe(value&0x01 != 0)
	case addr < 0x4020:
		// APU registers: out of scope, writes dropped
	default:
		b.cart.CPUWrite(addr, value)
	}
}

// TransferOAMByte copies one byte from CPU page*0x100+offset into OAM. The
// source byte is fetched through Read, the same path (and side effects) a
// CPU read takes; the OAM write goes through DMAWriteByte, which bypasses
// the rendering gate OAMDATA writes respect.
func (b *CPUBus) TransferOAMByte(page uint8, offset uint8) {
	value := b.Read(uint16(page)<<8 | uint16(offset))
	b.ppu.DMAWriteByte(value)
}

// PPUBus is the 16 KiB address space the PPU sees: pattern tables backed by
// cartridge CHR, 2 KiB of nametable RAM folded through the cartridge's
// mirroring mode, and 32 bytes of palette RAM with its background-color
// aliasing.
type PPUBus struct {
	cart       *cartridge.Cartridge
	nametables [0x800]uint8
	palette    [0x20]uint8
}

// NewPPUBus wires the PPU's view of the cartridge's CHR and mirroring mode.
func NewPPUBus(cart *cartridge.Cartridge) *PPUBus {
	return &PPUBus{cart: cart}
}

// Read implements ppu.Bus.
func (b *PPUBus) Read(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		return b.cart.PPURead(addr)
	case addr < 0x3F00:
		return b.nametables[b.nametableIndex(addr)]
	default:
		return b.palette[b.paletteIndex(addr)]
	}
}

// Write implements ppu.Bus.
func (b *PPUBus) Write(addr uint16, value uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		b.cart.PPUWrite(addr, value)
	case addr < 0x3F00:
		b.nametables[b.nametableIndex(addr)] = value
	default:
		b.palette[b.paletteIndex(addr)] = value
	}
}

func (b *PPUBus) nametableIndex(addr uint16) uint16 {
	addr &= 0x0FFF
	table := addr / 0x400
	offset := addr % 0x400

	// Vertical arrangement pairs tables {0,2} and {1,3} (table parity selects
	// the bank), while Horizontal arrangement pairs tables {0,1} and {2,3}
	// (table/2 selects the bank).
	switch b.cart.Mirroring() {
	case cartridge.MirrorVertical:
		return (table%2)*0x400 + offset
	default: // MirrorHorizontal
		return (table/2)*0x400 + offset
	}
}

func (b *PPUBus) paletteIndex(addr uint16) uint16 {
	index := (addr - 0x3F00) & 0x1F
	if index >= 0x10 && index%4 == 0 {
		index &= 0x0F
	}
	return index
}
