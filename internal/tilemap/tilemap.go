// Package tilemap provides a reference TilemapEngine: the background
// collaborator named only by contract (renderScanline, getTileAt) and
// otherwise unspecified. Tile-entry decode (tilemap entry ->
// index+attribute byte -> 4bpp nibble, with scroll wrap and H/V flip)
// operates on 16x16 tile cells (matching the sprite bitmap cell size
// and the "128 bytes per 16x16 cell" graphics file layout) and is
// driven scanline-at-a-time to fit the FramePipeline's per-line
// contract.
package tilemap

import (
	"github.com/foundrycade/pixelforge/internal/bus"
	"github.com/foundrycade/pixelforge/internal/vmlog"
)

// Registers in 0x013D..0x0145. Their exact layout is this engine's own invention,
// since the contract names only the two operations below, not a
// register map.
const (
	RegEnable     = 0x013D
	RegBank       = 0x013E
	RegWidth      = 0x013F
	RegHeight     = 0x0140
	RegBaseOffHi  = 0x0141
	RegBaseOffLo  = 0x0142
	RegScrollXHi  = 0x0143
	RegScrollXLo  = 0x0144
	RegScrollY    = 0x0145

	TileCellSize   = 16
	BytesPerCell   = 128
	BytesPerRow    = 8
	TilePropsBase  = bus.TilePropsTableBase
	tileSolidBit   = 0x80
)

// Memory is the subset of the bus the tilemap engine needs.
type Memory interface {
	Read8(addr uint16) uint8
	ReadFromBank(bank uint8, offset int) uint8
}

// TileEntry is one decoded 2-byte tilemap entry.
type TileEntry struct {
	Index         uint8
	FlipH, FlipV  bool
	Priority      bool
	Palette       uint8
	BankOffset    uint8
}

// Engine renders tilemap scanlines and answers tile lookups for the
// sprite-tile collision path.
type Engine struct {
	mem Memory
	log *vmlog.Logger
}

// New creates a tilemap engine over the given bus-backed memory view.
func New(mem Memory, log *vmlog.Logger) *Engine {
	return &Engine{mem: mem, log: log}
}

// ResetFrame is a no-op placeholder for the per-frame hook the
// pipeline calls unconditionally;
// this reference engine carries no per-frame state to reset.
func (e *Engine) ResetFrame() {}

func (e *Engine) enabled() bool {
	return e.mem.Read8(RegEnable)&0x01 != 0
}

func (e *Engine) dims() (width, height int) {
	return int(e.mem.Read8(RegWidth)), int(e.mem.Read8(RegHeight))
}

func (e *Engine) baseOffset() int {
	return int(e.mem.Read8(RegBaseOffHi))<<8 | int(e.mem.Read8(RegBaseOffLo))
}

func (e *Engine) scroll() (x, y int) {
	return int(e.mem.Read8(RegScrollXHi))<<8 | int(e.mem.Read8(RegScrollXLo)), int(e.mem.Read8(RegScrollY))
}

func wrap(v, span int) int {
	if span <= 0 {
		return 0
	}
	v %= span
	if v < 0 {
		v += span
	}
	return v
}

func (e *Engine) entryAt(tileX, tileY, width int) TileEntry {
	bank := e.mem.Read8(RegBank)
	off := e.baseOffset() + (tileY*width+tileX)*2
	idx := e.mem.ReadFromBank(bank, off)
	attrs := e.mem.ReadFromBank(bank, off+1)
	return TileEntry{
		Index:      idx,
		FlipH:      attrs&0x80 != 0,
		FlipV:      attrs&0x40 != 0,
		Priority:   attrs&0x20 != 0,
		Palette:    (attrs >> 3) & 0x3,
		BankOffset: attrs & 0x3,
	}
}

// RenderScanline produces W master-palette indices for scanline y, 0
// meaning transparent.
func (e *Engine) RenderScanline(y uint8, w int) []uint8 {
	line := make([]uint8, w)
	if !e.enabled() {
		return line
	}
	width, height := e.dims()
	if width == 0 || height == 0 {
		return line
	}
	scrollX, scrollY := e.scroll()
	bank := e.mem.Read8(RegBank)

	worldY := wrap(int(y)+scrollY, height*TileCellSize)
	tileY := worldY / TileCellSize
	pixelY := worldY % TileCellSize

	for x := 0; x < w; x++ {
		worldX := wrap(x+scrollX, width*TileCellSize)
		tileX := worldX / TileCellSize
		pixelX := worldX % TileCellSize

		entry := e.entryAt(tileX, tileY, width)
		py, px := pixelY, pixelX
		if entry.FlipV {
			py = TileCellSize - 1 - py
		}
		if entry.FlipH {
			px = TileCellSize - 1 - px
		}

		cellBank := bank + entry.BankOffset
		b := e.mem.ReadFromBank(cellBank, int(entry.Index)*BytesPerCell+py*BytesPerRow+px/2)
		var pixel uint8
		if px%2 == 0 {
			pixel = (b >> 4) & 0xF
		} else {
			pixel = b & 0xF
		}
		if pixel == 0 {
			continue
		}
		line[x] = pixel + entry.Palette*16
	}
	return line
}

// GetTileAt returns the tile entry covering the given world pixel
// coordinates, or ok=false if the tilemap is disabled or has zero
// extent.
func (e *Engine) GetTileAt(worldX, worldY int) (TileEntry, bool) {
	if !e.enabled() {
		return TileEntry{}, false
	}
	width, height := e.dims()
	if width == 0 || height == 0 {
		return TileEntry{}, false
	}
	tileX := wrap(worldX, width*TileCellSize) / TileCellSize
	tileY := wrap(worldY, height*TileCellSize) / TileCellSize
	return e.entryAt(tileX, tileY, width), true
}

// byteReader is the minimal seam IsTileSolid needs; satisfied by both
// Memory and the plain bus.
type byteReader interface {
	Read8(addr uint16) uint8
}

// IsTileSolid reads the TILE_SOLID bit (bit 7) for the given tile
// index from the tile-properties table at 0x0A80, consulted by the
// pipeline before calling SpriteEngine.RecordTileCollision.
func IsTileSolid(mem byteReader, tileIndex uint8) bool {
	return mem.Read8(TilePropsBase+uint16(tileIndex))&tileSolidBit != 0
}
