// Package pipeline implements FramePipeline: the 60 Hz render/frame
// actor that drives TilemapEngine and SpriteEngine scanline-by-
// scanline, merges their output with the raw framebuffer into the
// display hand-off, polls input, and pulses VBlank.
package pipeline

import (
	"github.com/foundrycade/pixelforge/internal/bus"
	"github.com/foundrycade/pixelforge/internal/input"
	"github.com/foundrycade/pixelforge/internal/tilemap"
	"github.com/foundrycade/pixelforge/internal/vmlog"
)

const (
	Width  = 256
	Height = 160 // Mode 0 visible scanlines
)

// Bus is the subset of *bus.Bus the pipeline touches directly: raw
// framebuffer reads and the VBlank pulse.
type Bus interface {
	Read8(addr uint16) uint8
	OrIntStatus(bits uint8)
	SetControllerState(pad1, pad2 uint16)
}

// SpriteEngine is the subset of *sprite.Engine the pipeline drives.
type SpriteEngine interface {
	ResetFrame()
	RenderScanline(y uint8, w int, bg []uint8) (line, owners []uint8)
	RecordTileCollision(spriteID, tileType, sides uint8)
	FinalizeFrame()
}

// TilemapEngine is the subset of *tilemap.Engine the pipeline drives.
type TilemapEngine interface {
	ResetFrame()
	RenderScanline(y uint8, w int) []uint8
	GetTileAt(worldX, worldY int) (tilemap.TileEntry, bool)
}

// InputPoller publishes the host's observed button state onto the
// bus once per frame.
type InputPoller interface {
	Poll(bus input.Bus)
}

// Pipeline is the render/frame actor.
type Pipeline struct {
	bus      Bus
	sprites  SpriteEngine
	tiles    TilemapEngine
	in       InputPoller
	log      *vmlog.Logger
	visible  bool
	stopping bool

	// frame is the display hand-off: the composited master-palette
	// index for every pixel of the last rendered frame. It is distinct
	// from the CPU-owned framebuffer at 0xB000, which this pipeline
	// only ever reads.
	frame [Width * Height]uint8
}

// New creates a pipeline over the given collaborators. Visibility
// starts true, matching a freshly started machine with its display
// attached.
func New(b Bus, sprites SpriteEngine, tiles TilemapEngine, in InputPoller, log *vmlog.Logger) *Pipeline {
	return &Pipeline{bus: b, sprites: sprites, tiles: tiles, in: in, log: log, visible: true}
}

// Frame returns the last composited display hand-off, one
// master-palette index per pixel, row-major.
func (p *Pipeline) Frame() []uint8 {
	return p.frame[:]
}

// SetVisible toggles the composite step without affecting VBlank or
// input polling, so CPU timing stays consistent whether or not the
// host is drawing.
func (p *Pipeline) SetVisible(v bool) {
	p.visible = v
}

// Stop prevents RunFrame from scheduling further composite work after
// any in-flight frame completes; cancellation is cooperative (spec
// §4.5 invariants).
func (p *Pipeline) Stop() {
	p.stopping = true
}

// Stopped reports whether Stop has been called.
func (p *Pipeline) Stopped() bool {
	return p.stopping
}

// RunFrame renders one frame (when visible and not stopped) and
// always polls input and pulses VBlank, in that order.
func (p *Pipeline) RunFrame() {
	if !p.stopping && p.visible {
		p.sprites.ResetFrame()
		p.tiles.ResetFrame()
		for y := 0; y < Height; y++ {
			p.renderScanline(uint8(y))
		}
		p.sprites.FinalizeFrame()
	}
	p.in.Poll(p.bus)
	p.bus.OrIntStatus(0x01)
}

func (p *Pipeline) renderScanline(y uint8) {
	tileLine := p.tiles.RenderScanline(y, Width)
	bg := make([]uint8, Width)
	for x := 0; x < Width; x++ {
		if tileLine[x] != 0 {
			bg[x] = tileLine[x]
		} else {
			bg[x] = readFramebufferPixel(p.bus, x, int(y))
		}
	}

	spriteLine, owners := p.sprites.RenderScanline(y, Width, bg)

	for x := 0; x < Width; x++ {
		final := bg[x]
		if spriteLine[x] != 0 {
			final = spriteLine[x]
		}
		p.frame[int(y)*Width+x] = final

		if owners[x] == NoOwnerSentinel {
			continue
		}
		entry, ok := p.tiles.GetTileAt(x, int(y))
		if !ok {
			continue
		}
		if tilemap.IsTileSolid(p.bus, entry.Index) {
			p.sprites.RecordTileCollision(owners[x], entry.Index, collisionSides(x, int(y)))
		}
	}
}

// NoOwnerSentinel mirrors sprite.NoOwner without importing the sprite
// package just for the constant.
const NoOwnerSentinel uint8 = 0xFF

// collisionSides reports which edges of the 16x16 tile cell containing
// pixel (x, y) that pixel lies on, encoded as top/bottom/left/right
// bits.
func collisionSides(x, y int) uint8 {
	var sides uint8
	if y%tilemap.TileCellSize == 0 {
		sides |= 0x8 // top
	}
	if y%tilemap.TileCellSize == tilemap.TileCellSize-1 {
		sides |= 0x4 // bottom
	}
	if x%tilemap.TileCellSize == 0 {
		sides |= 0x2 // left
	}
	if x%tilemap.TileCellSize == tilemap.TileCellSize-1 {
		sides |= 0x1 // right
	}
	return sides
}

func readFramebufferPixel(b Bus, x, y int) uint8 {
	addr := bus.FramebufferBase + uint16(y*Width/2+x/2)
	v := b.Read8(addr)
	if x%2 == 0 {
		return (v >> 4) & 0xF
	}
	return v & 0xF
}

