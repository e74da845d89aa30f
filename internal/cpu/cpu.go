// Package cpu implements the 6502-family CPU interpreter that drives the
// NES core: fetch-decode-execute with cycle accounting, RESET/NMI/IRQ/BRK,
// and the indirect-JMP page bug.
package cpu

import "nescore/internal/neserr"

const (
	stackBase   = 0x0100
	resetVector = 0xFFFC
	nmiVector   = 0xFFFA
	irqVector   = 0xFFFE

	flagC = 0x01
	flagZ = 0x02
	flagI = 0x04
	flagD = 0x08
	flagB = 0x10
	flagU = 0x20
	flagV = 0x40
	flagN = 0x80
)

// Bus is the memory interface the CPU fetches, reads, and writes through.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// CPU holds the 6502 register file and drives execution one instruction at
// a time via Step.
type CPU struct {
	A, X, Y uint8
	SP      uint8
	PC      uint16

	C, Z, I, D, V, N bool // B and U are not persistent state; see packStatus.

	Cycles uint64

	bus Bus
}

// New constructs a CPU wired to bus. SP starts at 0xFD; all other registers
// are left at their zero value until Reset is called.
func New(bus Bus) *CPU {
	return &CPU{bus: bus, SP: 0xFD}
}

// Reset performs the 6502 power-on/reset sequence: load PC from the reset
// vector, clear A/X/Y, drop the stack pointer by 3 (three dummy pushes),
// set I, and consume 7 cycles.
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP -= 3
	c.I = true
	c.PC = c.readU16(resetVector)
	c.Cycles = 7
}

// Step fetches and executes one instruction, returning the number of CPU
// cycles it cost (base cycles plus any addressing-mode or branch penalty).
func (c *CPU) Step() (uint8, error) {
	opcodeByte := c.bus.Read(c.PC)
	info := opcodeTable[opcodeByte]
	if !info.defined {
		return 0, &neserr.DecodeError{PC: c.PC, Opcode: opcodeByte}
	}
	c.PC++

	operand, crossed := c.fetchOperand(info.mode)

	var extra uint64
	if crossed && info.pageCross {
		extra++
	}

	c.execute(info.mnemonic, info.mode, operand, &extra)

	k := uint64(info.cycles) + extra
	c.Cycles += k
	return uint8(k), nil
}

// NMI services a non-maskable interrupt: pushes PC and status (with I
// forced on in the stacked copy), sets I, and vectors through 0xFFFA.
func (c *CPU) NMI() {
	c.pushU16(c.PC)
	c.push(c.packStatus(false) | flagI)
	c.I = true
	c.PC = c.readU16(nmiVector)
	c.Cycles += 2
}

// IRQ services a maskable interrupt request; a no-op while I is set. No
// component in this core currently asserts IRQ (NROM has no IRQ source and
// the APU is out of scope), but the CPU implements it for completeness per
// the 6502 reference.
func (c *CPU) IRQ() {
	if c.I {
		return
	}
	c.pushU16(c.PC)
	c.push(c.packStatus(false))
	c.I = true
	c.PC = c.readU16(irqVector)
	c.Cycles += 7
}

// Status returns the packed processor status byte (B=0, U=1) for
// diagnostics and trace logging.
func (c *CPU) Status() uint8 { return c.packStatus(false) }

func (c *CPU) packStatus(breakFlag bool) uint8 {
	var s uint8
	if c.C {
		s |= flagC
	}
	if c.Z {
		s |= flagZ
	}
	if c.I {
		s |= flagI
	}
	if c.D {
		s |= flagD
	}
	if breakFlag {
		s |= flagB
	}
	s |= flagU
	if c.V {
		s |= flagV
	}
	if c.N {
		s |= flagN
	}
	return s
}

func (c *CPU) unpackStatus(s uint8) {
	c.C = s&flagC != 0
	c.Z = s&flagZ != 0
	c.I = s&flagI != 0
	c.D = s&flagD != 0
	c.V = s&flagV != 0
	c.N = s&flagN != 0
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&0x80 != 0
}

func (c *CPU) push(v uint8) {
	c.bus.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.bus.Read(stackBase + uint16(c.SP))
}

func (c *CPU) pushU16(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) popU16() uint16 {
	lo := c.pop()
	hi := c.pop()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) readU16(addr uint16) uint16 {
	lo := c.bus.Read(addr)
	hi := c.bus.Read(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// readU16Buggy reproduces the documented 6502 indirect-addressing bug: the
// high byte wraps within the page instead of carrying into the next one.
func (c *CPU) readU16Buggy(addr uint16) uint16 {
	lo := c.bus.Read(addr)
	hiAddr := (addr & 0xFF00) | ((addr + 1) & 0x00FF)
	hi := c.bus.Read(hiAddr)
	return uint16(hi)<<8 | uint16(lo)
}

// fetchOperand computes the effective address (or, for Relative, the
// sign-extended displacement) for mode, advancing PC past the operand
// bytes, and reports whether an indexed computation crossed a page.
func (c *CPU) fetchOperand(mode AddressingMode) (operand uint16, crossed bool) {
	switch mode {
	case Accumulator, Implied:
		return 0, false
	case Immediate:
		operand = c.PC
		c.PC++
	case ZeroPage:
		operand = uint16(c.bus.Read(c.PC))
		c.PC++
	case ZeroPageX:
		operand = uint16(c.bus.Read(c.PC) + c.X)
		c.PC++
	case ZeroPageY:
		operand = uint16(c.bus.Read(c.PC) + c.Y)
		c.PC++
	case Absolute:
		operand = c.readU16(c.PC)
		c.PC += 2
	case AbsoluteX:
		base := c.readU16(c.PC)
		operand = base + uint16(c.X)
		crossed = base&0xFF00 != operand&0xFF00
		c.PC += 2
	case AbsoluteY:
		base := c.readU16(c.PC)
		operand = base + uint16(c.Y)
		crossed = base&0xFF00 != operand&0xFF00
		c.PC += 2
	case Indirect:
		ptr := c.readU16(c.PC)
		operand = c.readU16Buggy(ptr)
		c.PC += 2
	case IndexedIndirect:
		zp := uint16(c.bus.Read(c.PC) + c.X)
		operand = c.readU16Buggy(zp)
		c.PC++
	case IndirectIndexed:
		zp := uint16(c.bus.Read(c.PC))
		base := c.readU16Buggy(zp)
		operand = base + uint16(c.Y)
		crossed = base&0xFF00 != operand&0xFF00
		c.PC++
	case Relative:
		offset := int8(c.bus.Read(c.PC))
		c.PC++
		operand = uint16(int16(offset))
	}
	return operand, crossed
}

func (c *CPU) readValue(mode AddressingMode, operand uint16) uint8 {
	if mode == Accumulator {
		return c.A
	}
	return c.bus.Read(operand)
}

func (c *CPU) writeValue(mode AddressingMode, operand uint16, value uint8) {
	if mode == Accumulator {
		c.A = value
		return
	}
	c.bus.Write(operand, value)
}

func (c *CPU) branch(taken bool, displacement uint16, extra *uint64) {
	if !taken {
		return
	}
	*extra++
	oldPC := c.PC
	c.PC += displacement
	if oldPC&0xFF00 != c.PC&0xFF00 {
		*extra++
	}
}

func (c *CPU) compare(reg uint8, mode AddressingMode, operand uint16) {
	m := c.readValue(mode, operand)
	result := reg - m
	c.C = reg >= m
	c.setZN(result)
}

func (c *CPU) execute(m Mnemonic, mode AddressingMode, operand uint16, extra *uint64) {
	switch m {
	case ADC:
		v := c.readValue(mode, operand)
		a := c.A
		var carryIn uint16
		if c.C {
			carryIn = 1
		}
		sum := uint16(a) + uint16(v) + carryIn
		result := uint8(sum)
		c.V = (result^a)&(result^v)&0x80 != 0
		c.C = sum > 0xFF
		c.A = result
		c.setZN(result)
	case SBC:
		v := c.readValue(mode, operand)
		a := c.A
		var borrow uint8
		if !c.C {
			borrow = 1
		}
		result := a - v - borrow
		c.V = (a^v)&(a^result)&0x80 != 0
		c.C = int8(result) >= 0
		c.A = result
		c.setZN(result)
	case AND:
		c.A &= c.readValue(mode, operand)
		c.setZN(c.A)
	case ORA:
		c.A |= c.readValue(mode, operand)
		c.setZN(c.A)
	case EOR:
		c.A ^= c.readValue(mode, operand)
		c.setZN(c.A)
	case ASL:
		v := c.readValue(mode, operand)
		c.C = v&0x80 != 0
		result := v << 1
		c.writeValue(mode, operand, result)
		c.setZN(result)
	case LSR:
		v := c.readValue(mode, operand)
		c.C = v&0x01 != 0
		result := v >> 1
		c.writeValue(mode, operand, result)
		c.setZN(result)
	case ROL:
		v := c.readValue(mode, operand)
		carryOut := v&0x80 != 0
		result := v << 1
		if c.C {
			result |= 0x01
		}
		c.writeValue(mode, operand, result)
		c.C = carryOut
		c.setZN(result)
	case ROR:
		v := c.readValue(mode, operand)
		carryOut := v&0x01 != 0
		result := v >> 1
		if c.C {
			result |= 0x80
		}
		c.writeValue(mode, operand, result)
		c.C = carryOut
		c.setZN(result)
	case BIT:
		v := c.readValue(mode, operand)
		c.Z = c.A&v == 0
		c.V = v&0x40 != 0
		c.N = v&0x80 != 0
	case CMP:
		c.compare(c.A, mode, operand)
	case CPX:
		c.compare(c.X, mode, operand)
	case CPY:
		c.compare(c.Y, mode, operand)
	case DEC:
		v := c.readValue(mode, operand) - 1
		c.writeValue(mode, operand, v)
		c.setZN(v)
	case INC:
		v := c.readValue(mode, operand) + 1
		c.writeValue(mode, operand, v)
		c.setZN(v)
	case DEX:
		c.X--
		c.setZN(c.X)
	case DEY:
		c.Y--
		c.setZN(c.Y)
	case INX:
		c.X++
		c.setZN(c.X)
	case INY:
		c.Y++
		c.setZN(c.Y)
	case LDA:
		c.A = c.readValue(mode, operand)
		c.setZN(c.A)
	case LDX:
		c.X = c.readValue(mode, operand)
		c.setZN(c.X)
	case LDY:
		c.Y = c.readValue(mode, operand)
		c.setZN(c.Y)
	case STA:
		c.bus.Write(operand, c.A)
	case STX:
		c.bus.Write(operand, c.X)
	case STY:
		c.bus.Write(operand, c.Y)
	case TAX:
		c.X = c.A
		c.setZN(c.X)
	case TAY:
		c.Y = c.A
		c.setZN(c.Y)
	case TXA:
		c.A = c.X
		c.setZN(c.A)
	case TYA:
		c.A = c.Y
		c.setZN(c.A)
	case TSX:
		c.X = c.SP
		c.setZN(c.X)
	case TXS:
		c.SP = c.X
	case PHA:
		c.push(c.A)
	case PHP:
		c.push(c.packStatus(true))
	case PLA:
		c.A = c.pop()
		c.setZN(c.A)
	case PLP:
		c.unpackStatus(c.pop())
	case JMP:
		c.PC = operand
	case JSR:
		c.pushU16(c.PC - 1)
		c.PC = operand
	case RTS:
		c.PC = c.popU16() + 1
	case RTI:
		c.unpackStatus(c.pop())
		c.PC = c.popU16()
	case BRK:
		c.pushU16(c.PC)
		c.push(c.packStatus(true))
		c.I = true
		c.PC = c.readU16(irqVector)
	case BCC:
		c.branch(!c.C, operand, extra)
	case BCS:
		c.branch(c.C, operand, extra)
	case BEQ:
		c.branch(c.Z, operand, extra)
	case BNE:
		c.branch(!c.Z, operand, extra)
	case BPL:
		c.branch(!c.N, operand, extra)
	case BMI:
		c.branch(c.N, operand, extra)
	case BVC:
		c.branch(!c.V, operand, extra)
	case BVS:
		c.branch(c.V, operand, extra)
	case CLC:
		c.C = false
	case SEC:
		c.C = true
	case CLD:
		c.D = false
	case SED:
		c.D = true
	case CLI:
		c.I = false
	case SEI:
		c.I = true
	case CLV:
		c.V = false
	case NOP:
		// no-op
	}
}
