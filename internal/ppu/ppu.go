// Package ppu implements the NES Picture Processing Unit: the 341x262
// scanline/dot state machine, the loopy v/t/x/w scroll registers, the
// background shift-register pipeline, sprite evaluation, and sprite-zero
// hit detection.
package ppu

const (
	dotsPerScanline     = 341
	scanlinesPerFrame   = 262
	visibleScanlines    = 240
	postRenderScanline  = 240
	vblankStartScanline = 241
	preRenderScanline   = 261

	statusVBlank         = 0x80
	statusSprite0Hit     = 0x40
	statusSpriteOverflow = 0x20
)

// Bus is the 16 KiB PPU address space the pipeline fetches tiles, attributes
// and palette bytes through.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

type spriteSlot struct {
	y, tile, attr, x uint8
	oamIndex         int
}

// PPU holds all pixel-pipeline state and produces one RGBA framebuffer per
// frame, raising should_nmi at vblank entry when enabled.
type PPU struct {
	bus Bus

	ctrl, mask, status, oamAddr uint8
	OAM                         [256]uint8

	v, t uint16
	x    uint8
	w    bool

	patternLo, patternHi uint16
	attrLo, attrHi       uint16

	ntLatch, atLatch               uint8
	patternLoLatch, patternHiLatch uint8

	scanlineSprites   []spriteSlot
	sprite0InScanline bool

	bgOpaque [visibleScanlines][256]bool

	Frame [256 * 240 * 4]uint8

	cycle, scanline int

	hadPreRender   bool
	frameReadyFlag bool
	ShouldNMI      bool

	vramReadBuffer uint8
}

// New constructs a PPU wired to bus. All registers and latches start at
// their zero value, matching power-on.
func New(bus Bus) *PPU {
	return &PPU{bus: bus}
}

// --- typed register accessors (spec.md design note: expose named fields
// instead of ad-hoc shifts at call sites) ---

func (p *PPU) baseNametableAddr() uint16 { return 0x2000 + uint16(p.ctrl&0x03)*0x400 }
func (p *PPU) vramIncrement() uint16 {
	if p.ctrl&0x04 != 0 {
		return 32
	}
	return 1
}
func (p *PPU) spritePatternTable() uint16 {
	if p.ctrl&0x08 != 0 {
		return 0x1000
	}
	return 0
}
func (p *PPU) bgPatternTable() uint16 {
	if p.ctrl&0x10 != 0 {
		return 0x1000
	}
	return 0
}
func (p *PPU) spriteHeight() int {
	if p.ctrl&0x20 != 0 {
		return 16
	}
	return 8
}
func (p *PPU) nmiEnabled() bool { return p.ctrl&0x80 != 0 }

func (p *PPU) grayscale() bool      { return p.mask&0x01 != 0 }
func (p *PPU) showBackground() bool { return p.mask&0x08 != 0 }
func (p *PPU) showSprites() bool    { return p.mask&0x10 != 0 }
func (p *PPU) renderingEnabled() bool {
	return p.showBackground() || p.showSprites()
}

func (p *PPU) getCoarseX() uint16 { return p.v & 0x001F }
func (p *PPU) getCoarseY() uint16 { return (p.v & 0x03E0) >> 5 }
func (p *PPU) getFineY() uint16   { return (p.v & 0x7000) >> 12 }

// --- CPU-facing register window ($2000-$2007, mirrored every 8 bytes) ---

func (p *PPU) ReadRegister(addr uint16) uint8 {
	switch addr & 7 {
	case 2: // PPUSTATUS
		result := p.status
		p.status &^= statusVBlank
		p.w = false
		return result
	case 4: // OAMDATA: pure, does not advance OAMADDR
		return p.OAM[p.oamAddr]
	case 7: // PPUDATA
		return p.readData()
	default:
		return 0
	}
}

func (p *PPU) WriteRegister(addr uint16, value uint8) {
	switch addr & 7 {
	case 0:
		p.writeCtrl(value)
	case 1:
		if p.hadPreRender {
			p.mask = value
		}
	case 3:
		p.oamAddr = value
	case 4:
		if !p.isRendering() {
			p.OAM[p.oamAddr] = value
			p.oamAddr++
		}
	case 5:
		p.writeScroll(value)
	case 6:
		p.writeAddr(value)
	case 7:
		p.writeData(value)
	}
}

// DMAWriteByte stores one OAM-DMA byte and always advances OAMADDR,
// bypassing the rendering gate OAMDATA writes otherwise respect.
func (p *PPU) DMAWriteByte(value uint8) {
	p.OAM[p.oamAddr] = value
	p.oamAddr++
}

func (p *PPU) isRendering() bool {
	return p.renderingEnabled() && (p.scanline < visibleScanlines || p.scanline == preRenderScanline)
}

func (p *PPU) writeCtrl(value uint8) {
	if !p.hadPreRender {
		return
	}
	old := p.ctrl
	p.ctrl = value
	p.t = (p.t &^ 0x0C00) | (uint16(value&0x03) << 10)

	// Hardware quirk: arming vblank-NMI while VBlank is already set raises
	// the interrupt immediately instead of waiting for the next vblank.
	if old&0x80 == 0 && value&0x80 != 0 && p.status&statusVBlank != 0 {
		p.ShouldNMI = true
	}
}

func (p *PPU) writeScroll(value uint8) {
	if !p.w {
		p.t = (p.t &^ 0x001F) | uint16(value>>3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t &^ 0x73E0) | (uint16(value&0x07) << 12) | (uint16(value>>3) << 5)
		p.w = false
	}
}

func (p *PPU) writeAddr(value uint8) {
	if !p.w {
		p.t = (p.t &^ 0x7F00) | (uint16(value&0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t &^ 0x00FF) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

func (p *PPU) readData() uint8 {
	addr := p.v & 0x3FFF
	var result uint8
	if addr >= 0x3F00 {
		result = p.bus.Read(addr)
		p.vramReadBuffer = p.bus.Read(p.v & 0x2FFF)
	} else {
		result = p.vramReadBuffer
		p.vramReadBuffer = p.bus.Read(addr)
	}
	p.v += p.vramIncrement()
	return result
}

func (p *PPU) writeData(value uint8) {
	p.bus.Write(p.v&0x3FFF, value)
	p.v += p.vramIncrement()
}

// FrameReady reports the one-shot vblank-entry edge and clears it.
func (p *PPU) FrameReady() bool {
	if p.frameReadyFlag {
		p.frameReadyFlag = false
		return true
	}
	return false
}

// Tick advances the PPU by one dot.
func (p *PPU) Tick() {
	switch {
	case p.scanline == preRenderScanline && p.cycle == 1:
		p.status &^= statusVBlank | statusSprite0Hit | statusSpriteOverflow
		p.hadPreRender = true
	case p.scanline == vblankStartScanline && p.cycle == 1:
		p.status |= statusVBlank
		if p.nmiEnabled() {
			p.ShouldNMI = true
		}
		p.frameReadyFlag = true
	}

	if p.renderingEnabled() && (p.scanline < visibleScanlines || p.scanline == preRenderScanline) {
		p.renderTick()
	}

	if p.scanline < visibleScanlines && p.cycle >= 1 && p.cycle <= 256 {
		p.emitPixel(p.cycle-1, p.scanline)
	}

	p.advanceDot()
}

func (p *PPU) advanceDot() {
	p.cycle++
	if p.cycle >= dotsPerScanline {
		p.cycle = 0
		p.scanline++
		if p.scanline >= scanlinesPerFrame {
			p.scanline = 0
		}
	}
}

func (p *PPU) renderTick() {
	if (p.cycle >= 1 && p.cycle <= 256) || (p.cycle >= 321 && p.cycle <= 336) {
		p.patternLo <<= 1
		p.patternHi <<= 1
		p.attrLo <<= 1
		p.attrHi <<= 1

		switch (p.cycle - 1) % 8 {
		case 0:
			p.ntLatch = p.bus.Read(0x2000 | (p.v & 0x0FFF))
		case 2:
			atAddr := uint16(0x23C0) | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
			raw := p.bus.Read(atAddr)
			quadrant := ((p.getCoarseY()%4)/2)*2 + (p.getCoarseX()%4)/2
			p.atLatch = (raw >> (quadrant * 2)) & 0x03
		case 4:
			base := p.bgPatternTable()
			p.patternLoLatch = p.bus.Read(base + uint16(p.ntLatch)*16 + p.getFineY())
		case 6:
			base := p.bgPatternTable()
			p.patternHiLatch = p.bus.Read(base + uint16(p.ntLatch)*16 + 8 + p.getFineY())
		case 7:
			p.incrementCoarseX()
			p.patternLo = (p.patternLo &^ 0x00FF) | uint16(p.patternLoLatch)
			p.patternHi = (p.patternHi &^ 0x00FF) | uint16(p.patternHiLatch)
			if p.atLatch&0x01 != 0 {
				p.attrLo |= 0x00FF
			} else {
				p.attrLo &^= 0x00FF
			}
			if p.atLatch&0x02 != 0 {
				p.attrHi |= 0x00FF
			} else {
				p.attrHi &^= 0x00FF
			}
		}
	}

	if p.cycle == 256 {
		p.incrementY()
	}
	if p.cycle == 257 {
		p.copyX()
	}
	if p.scanline == preRenderScanline && p.cycle >= 280 && p.cycle <= 304 {
		p.copyY()
	}
	if p.cycle == 320 {
		p.evaluateSprites()
	}
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyX() { p.v = (p.v &^ 0x041F) | (p.t & 0x041F) }
func (p *PPU) copyY() { p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0) }

func (p *PPU) evaluateSprites() {
	nextScanline := p.scanline + 1
	if p.scanline == preRenderScanline {
		nextScanline = 0
	}
	height := p.spriteHeight()

	found := p.scanlineSprites[:0]
	overflow := false
	for i := 0; i < 64; i++ {
		y := p.OAM[i*4]
		if y == 0 || y == 1 {
			continue
		}
		top := int(y) + 1
		if nextScanline >= top && nextScanline < top+height {
			if len(found) < 8 {
				found = append(found, spriteSlot{
					y: y, tile: p.OAM[i*4+1], attr: p.OAM[i*4+2], x: p.OAM[i*4+3], oamIndex: i,
				})
			} else {
				overflow = true
			}
		}
	}
	p.scanlineSprites = found
	p.sprite0InScanline = len(found) > 0 && found[0].oamIndex == 0
	if overflow {
		p.status |= statusSpriteOverflow
	}
}

// backgroundPixel returns the palette address for (x,y) and whether the
// background pixel is opaque (non-zero color index).
func (p *PPU) backgroundPixel(x, y int) (addr uint16, opaque bool) {
	mux := uint16(0x8000) >> p.x
	var color, palette uint8
	if p.patternLo&mux != 0 {
		color |= 0x01
	}
	if p.patternHi&mux != 0 {
		color |= 0x02
	}
	if p.attrLo&mux != 0 {
		palette |= 0x01
	}
	if p.attrHi&mux != 0 {
		palette |= 0x02
	}

	if color != 0 {
		p.bgOpaque[y][x] = true
		return 0x3F00 + uint16(palette)*4 + uint16(color), true
	}
	p.bgOpaque[y][x] = false
	return 0x3F00, false
}

// spritePixel returns the palette address, opacity, background-priority bit,
// and whether the contributing sprite is OAM slot 0, for the first opaque
// sprite covering (x,y) among this scanline's evaluated sprites.
func (p *PPU) spritePixel(x, y int) (addr uint16, opaque bool, behindBackground bool, isSprite0 bool) {
	height := p.spriteHeight()
	for _, s := range p.scanlineSprites {
		if x < int(s.x) || x >= int(s.x)+8 {
			continue
		}
		col := x - int(s.x)
		if s.attr&0x40 != 0 { // flip H
			col = 7 - col
		}
		row := y - (int(s.y) + 1)
		if s.attr&0x80 != 0 { // flip V
			row = height - 1 - row
		}

		var table uint16
		var tileIndex uint8
		if height == 16 {
			table = uint16(s.tile&0x01) * 0x1000
			base := s.tile & 0xFE
			if row >= 8 {
				tileIndex = base | 0x01
				row -= 8
			} else {
				tileIndex = base
			}
		} else {
			table = p.spritePatternTable()
			tileIndex = s.tile
		}

		lo := p.bus.Read(table + uint16(tileIndex)*16 + uint16(row))
		hi := p.bus.Read(table + uint16(tileIndex)*16 + 8 + uint16(row))
		bit := uint(7 - col)
		color := (lo>>bit)&1 | ((hi>>bit)&1)<<1
		if color == 0 {
			continue
		}
		palette := s.attr & 0x03
		priority := s.attr&0x20 != 0
		return 0x3F10 + uint16(palette)*4 + uint16(color), true, priority, s.oamIndex == 0
	}
	return 0, false, false, false
}

func (p *PPU) emitPixel(x, y int) {
	bgAddr, bgOpaque := p.backgroundPixel(x, y)
	sprAddr, sprOpaque, sprBehind, isSprite0 := p.spritePixel(x, y)

	if isSprite0 && sprOpaque && bgOpaque {
		p.status |= statusSprite0Hit
	}

	var finalAddr uint16
	if sprOpaque && (!sprBehind || !bgOpaque) {
		finalAddr = sprAddr
	} else {
		finalAddr = bgAddr
	}

	paletteIndex := p.bus.Read(finalAddr)
	if p.grayscale() {
		paletteIndex &= 0x30
	}
	c := colorTable[paletteIndex&0x3F]

	off := (y*256 + x) * 4
	p.Frame[off] = c.r
	p.Frame[off+1] = c.g
	p.Frame[off+2] = c.b
	p.Frame[off+3] = 0xFF
}

// Scanline and Cycle expose the PPU's current position for diagnostics and
// tests that need to drive the PPU to a specific point in the frame.
func (p *PPU) Scanline() int { return p.scanline }
func (p *PPU) Cycle() int    { return p.cycle }

// Status returns the raw PPUSTATUS byte without the read side effects
// (clearing VBlank/w), for tests and diagnostics.
func (p *PPU) Status() uint8 { return p.status }
