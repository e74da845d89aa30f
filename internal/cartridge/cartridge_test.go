package cartridge

import (
	"bytes"
	"testing"
)

// buildINES assembles a minimal iNES image: prgBanks*16KiB PRG filled with
// fill, chrBanks*8KiB CHR filled with fill, mirroring from flags6 bit 0.
func buildINES(prgBanks, chrBanks int, flags6, flags7 uint8, fill uint8) []byte {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(uint8(prgBanks))
	buf.WriteByte(uint8(chrBanks))
	buf.WriteByte(flags6)
	buf.WriteByte(flags7)
	buf.Write(make([]byte, 8)) // flags8..15
	prg := bytes.Repeat([]byte{fill}, prgBanks*16384)
	buf.Write(prg)
	chr := bytes.Repeat([]byte{fill}, chrBanks*8192)
	buf.Write(chr)
	return buf.Bytes()
}

func TestLoad_RejectsBadMagic(t *testing.T) {
	data := buildINES(1, 1, 0, 0, 0xAA)
	data[0] = 'X'
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestLoad_RejectsUnsupportedMapper(t *testing.T) {
	// mapper 1 in the high nibble of flags6
	data := buildINES(1, 1, 0x10, 0, 0xAA)
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for unsupported mapper")
	}
}

func TestLoad_RejectsZeroPRG(t *testing.T) {
	data := buildINES(0, 1, 0, 0, 0xAA)
	if _, err := Load(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for zero PRG banks")
	}
}

func TestLoad_MirroringFromFlags6(t *testing.T) {
	horiz := buildINES(1, 1, 0x01, 0, 0xAA)
	cart, err := Load(bytes.NewReader(horiz))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mirroring() != MirrorHorizontal {
		t.Errorf("expected horizontal mirroring, got %v", cart.Mirroring())
	}

	vert := buildINES(1, 1, 0, 0, 0xAA)
	cart, err = Load(bytes.NewReader(vert))
	if err != nil {
		t.Fatal(err)
	}
	if cart.Mirroring() != MirrorVertical {
		t.Errorf("expected vertical mirroring, got %v", cart.Mirroring())
	}
}

func TestCPURead_16KiBMirrored(t *testing.T) {
	data := buildINES(1, 1, 0, 0, 0x42)
	cart, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if got := cart.CPURead(0x8000); got != 0x42 {
		t.Errorf("0x8000 = %#x, want 0x42", got)
	}
	if got := cart.CPURead(0xC000); got != 0x42 {
		t.Errorf("0xC000 (mirrored) = %#x, want 0x42", got)
	}
}

func TestCPURead_32KiBContiguous(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NES\x1A")
	buf.WriteByte(2)
	buf.WriteByte(1)
	buf.Write(make([]byte, 10))
	prg := make([]byte, 32768)
	prg[0] = 0x11
	prg[0x4000] = 0x22
	buf.Write(prg)
	buf.Write(make([]byte, 8192))

	cart, err := Load(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got := cart.CPURead(0x8000); got != 0x11 {
		t.Errorf("0x8000 = %#x, want 0x11", got)
	}
	if got := cart.CPURead(0xC000); got != 0x22 {
		t.Errorf("0xC000 = %#x, want 0x22", got)
	}
}

func TestCPUWrite_DroppedSilently(t *testing.T) {
	data := buildINES(1, 1, 0, 0, 0x42)
	cart, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cart.CPUWrite(0x8000, 0xFF)
	if got := cart.CPURead(0x8000); got != 0x42 {
		t.Errorf("PRG write should be dropped, got %#x", got)
	}
}

func TestCHR_ZeroBanksMeansRAM(t *testing.T) {
	data := buildINES(1, 0, 0, 0, 0x42)
	cart, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if !cart.hasCHRRAM {
		t.Fatal("expected CHR RAM when header reports zero CHR banks")
	}
	cart.PPUWrite(0x0010, 0x99)
	if got := cart.PPURead(0x0010); got != 0x99 {
		t.Errorf("CHR RAM write/read = %#x, want 0x99", got)
	}
}

func TestCHR_ROMWritesIgnored(t *testing.T) {
	data := buildINES(1, 1, 0, 0, 0x55)
	cart, err := Load(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	cart.PPUWrite(0x0000, 0x11)
	if got := cart.PPURead(0x0000); got != 0x55 {
		t.Errorf("CHR ROM write should be ignored, got %#x", got)
	}
}
