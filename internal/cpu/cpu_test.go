package cpu

import "testing"

// flatMemory is a trivial 64 KiB address space used to exercise the CPU in
// isolation from the real bus.
type flatMemory [65536]uint8

func (m *flatMemory) Read(addr uint16) uint8       { return m[addr] }
func (m *flatMemory) Write(addr uint16, v uint8)   { m[addr] = v }

func newTestCPU() (*CPU, *flatMemory) {
	mem := &flatMemory{}
	return New(mem), mem
}

func TestReset_VectorAndCycleCount(t *testing.T) {
	c, mem := newTestCPU()
	mem[0xFFFC] = 0x34
	mem[0xFFFD] = 0x12
	c.Reset()
	if c.PC != 0x1234 {
		t.Errorf("PC = %#04x, want 0x1234", c.PC)
	}
	if c.Cycles != 7 {
		t.Errorf("Cycles = %d, want 7", c.Cycles)
	}
	if !c.I {
		t.Error("I flag should be set after reset")
	}
}

func TestStep_PCAdvancesByAddressingModeWidth(t *testing.T) {
	cases := []struct {
		name  string
		setup func(mem *flatMemory)
		width uint16
	}{
		{"Immediate LDA", func(mem *flatMemory) { mem[0x8000] = 0xA9; mem[0x8001] = 0x10 }, 2},
		{"ZeroPage LDA", func(mem *flatMemory) { mem[0x8000] = 0xA5; mem[0x8001] = 0x10 }, 2},
		{"Absolute LDA", func(mem *flatMemory) { mem[0x8000] = 0xAD; mem[0x8001] = 0x00; mem[0x8002] = 0x02 }, 3},
		{"Implied NOP", func(mem *flatMemory) { mem[0x8000] = 0xEA }, 1},
		{"Accumulator ASL", func(mem *flatMemory) { mem[0x8000] = 0x0A }, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, mem := newTestCPU()
			tc.setup(mem)
			c.PC = 0x8000
			if _, err := c.Step(); err != nil {
				t.Fatal(err)
			}
			if c.PC != 0x8000+tc.width {
				t.Errorf("PC = %#04x, want %#04x", c.PC, 0x8000+tc.width)
			}
		})
	}
}

func TestStep_UnknownOpcodeIsDecodeError(t *testing.T) {
	c, mem := newTestCPU()
	mem[0x8000] = 0xFF // unused official opcode slot
	c.PC = 0x8000
	if _, err := c.Step(); err == nil {
		t.Fatal("expected a decode error for opcode 0xFF")
	}
}

func TestStackRoundTrip_U16AndU8(t *testing.T) {
	c, _ := newTestCPU()
	c.SP = 0xFD
	c.pushU16(0xBEEF)
	if got := c.popU16(); got != 0xBEEF {
		t.Errorf("popU16 = %#04x, want 0xBEEF", got)
	}
	c.push(0x42)
	if got := c.pop(); got != 0x42 {
		t.Errorf("pop = %#02x, want 0x42", got)
	}
}

func TestPHP_PLP_RoundTrip(t *testing.T) {
	c, mem := newTestCPU()
	c.SP = 0xFD
	c.C, c.Z, c.I, c.D, c.V, c.N = true, false, true, false, true, false

	mem[0x8000] = 0x08 // PHP
	mem[0x8001] = 0x28 // PLP
	c.PC = 0x8000

	wantC, wantZ, wantI, wantD, wantV, wantN := c.C, c.Z, c.I, c.D, c.V, c.N

	// Clobber the flags between PHP and PLP to prove PLP actually restores them.
	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	c.C, c.Z, c.I, c.D, c.V, c.N = false, true, false, true, false, true
	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}

	if c.C != wantC || c.Z != wantZ || c.I != wantI || c.D != wantD || c.V != wantV || c.N != wantN {
		t.Errorf("flags after PHP/PLP = %v, want original set", []bool{c.C, c.Z, c.I, c.D, c.V, c.N})
	}
	if status := c.Status(); status&flagU == 0 {
		t.Error("U should read 1")
	}
	if status := c.Status(); status&flagB != 0 {
		t.Error("B should read 0 outside of a push")
	}
}

func TestPageCrossPenalty_AbsoluteX(t *testing.T) {
	run := func(base uint16) uint8 {
		c, mem := newTestCPU()
		mem[0x8000] = 0xBD // LDA AbsoluteX
		mem[0x8001] = uint8(base)
		mem[0x8002] = uint8(base >> 8)
		c.X = 1
		c.PC = 0x8000
		cycles, err := c.Step()
		if err != nil {
			t.Fatal(err)
		}
		return cycles
	}
	noCross := run(0x1000)
	cross := run(0x10FF)
	if cross != noCross+1 {
		t.Errorf("crossing cycles = %d, non-crossing = %d; want exactly +1", cross, noCross)
	}
}

func TestIndirectJMP_PageBug(t *testing.T) {
	c, mem := newTestCPU()
	mem[0x8000] = 0x6C // JMP Indirect
	mem[0x8001] = 0xFF
	mem[0x8002] = 0x10 // pointer = 0x10FF
	mem[0x10FF] = 0x34
	mem[0x1000] = 0x12 // buggy high byte comes from 0x1000, not 0x1100
	mem[0x1100] = 0xFF // decoy: if this were read instead, PC would be 0xFF34
	c.PC = 0x8000
	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.PC != 0x1234 {
		t.Errorf("PC = %#04x, want 0x1234 (indirect-JMP page bug)", c.PC)
	}
}

func TestADC_FlagTable(t *testing.T) {
	cases := []struct {
		a, m, carryIn    uint8
		result           uint8
		v, carryOut, n   bool
	}{
		{0x50, 0x50, 0, 0xA0, true, false, true},
		{0xD0, 0x90, 0, 0x60, true, true, false},
	}
	for _, tc := range cases {
		c, mem := newTestCPU()
		c.A = tc.a
		c.C = tc.carryIn != 0
		mem[0x8000] = 0x69 // ADC Immediate
		mem[0x8001] = tc.m
		c.PC = 0x8000
		if _, err := c.Step(); err != nil {
			t.Fatal(err)
		}
		if c.A != tc.result {
			t.Errorf("A = %#02x, want %#02x", c.A, tc.result)
		}
		if c.V != tc.v {
			t.Errorf("V = %v, want %v", c.V, tc.v)
		}
		if c.C != tc.carryOut {
			t.Errorf("C = %v, want %v", c.C, tc.carryOut)
		}
		if c.N != tc.n {
			t.Errorf("N = %v, want %v", c.N, tc.n)
		}
	}
}

func TestNMI_PushesAndVectors(t *testing.T) {
	c, mem := newTestCPU()
	mem[0xFFFA] = 0x00
	mem[0xFFFB] = 0x90 // NMI vector -> 0x9000
	c.SP = 0xFD
	c.PC = 0x8042
	c.I = false
	startCycles := c.Cycles

	c.NMI()

	if c.PC != 0x9000 {
		t.Errorf("PC after NMI = %#04x, want 0x9000", c.PC)
	}
	if !c.I {
		t.Error("I should be set after NMI")
	}
	if c.Cycles != startCycles+2 {
		t.Errorf("Cycles = %d, want %d", c.Cycles, startCycles+2)
	}
	// stack holds status then PC (low addr first from push order: status, PCLow, PCHigh)
	if got := mem[stackBase+uint16(c.SP)+1]; got&flagI == 0 {
		t.Error("stacked status should have I forced on")
	}
}

func TestJSR_RTS_RoundTrip(t *testing.T) {
	c, mem := newTestCPU()
	c.SP = 0xFD
	mem[0x8000] = 0x20 // JSR
	mem[0x8001] = 0x00
	mem[0x8002] = 0x90
	mem[0x9000] = 0x60 // RTS
	c.PC = 0x8000

	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.PC != 0x9000 {
		t.Fatalf("PC after JSR = %#04x, want 0x9000", c.PC)
	}
	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.PC != 0x8003 {
		t.Errorf("PC after RTS = %#04x, want 0x8003", c.PC)
	}
}
