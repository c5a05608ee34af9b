// Package sprite implements SpriteEngine: per-scanline sprite
// evaluation and compositing, collision detection, and the
// frame-boundary bookkeeping that publishes SPRITE_OVERFLOW,
// COLLISION_FLAGS, and the collision ring back onto the bus.
package sprite

import (
	"github.com/foundrycade/pixelforge/internal/bus"
	"github.com/foundrycade/pixelforge/internal/vmlog"
)

const (
	MaxSprites          = 128
	MaxCollisionRecords = 85
	RecordSize          = 5
	SpriteSize          = 16
	BytesPerRow         = 8
	BytesPerSprite      = 128
)

// Memory is the subset of the bus the sprite engine needs: plain reads
// of the attribute table and registers, bank-qualified bitmap fetches,
// and the dedicated setters for the registers this engine owns.
type Memory interface {
	Read8(addr uint16) uint8
	Write8(addr uint16, v uint8)
	ReadFromBank(bank uint8, offset int) uint8
	SetSpriteOverflow(v bool)
	SetCollisionCount(n uint8)
	OrCollisionFlags(bits uint8)
	ResetCollisionFlags()
}

// Attribute is one decoded 5-byte sprite attribute record.
type Attribute struct {
	X, Y          uint8
	Idx           uint8
	FlipH, FlipV  bool
	BehindBG      bool
	PaletteOffset uint8
	Bank          uint8
}

func readAttribute(mem Memory, id uint8) Attribute {
	base := bus.SpriteAttrTableBase + uint16(id)*RecordSize
	flags := mem.Read8(base + 3)
	return Attribute{
		X:             mem.Read8(base),
		Y:             mem.Read8(base + 1),
		Idx:           mem.Read8(base + 2),
		FlipH:         flags&0x80 != 0,
		FlipV:         flags&0x40 != 0,
		BehindBG:      flags&0x20 != 0,
		PaletteOffset: (flags >> 3) & 0x3,
		Bank:          mem.Read8(base + 4),
	}
}

// CollisionRecord is one 3-byte collision-ring entry.
type CollisionRecord struct {
	SpriteID, Data, TypeFlags uint8
}

const (
	collSideTop    uint8 = 0x8
	collSideBottom uint8 = 0x4
	collSideLeft   uint8 = 0x2
	collSideRight  uint8 = 0x1
	collTileBit    uint8 = 0x80
)

type activeSprite struct {
	id   uint8
	attr Attribute
	row  [BytesPerRow]uint8
}

// Engine is the per-machine sprite evaluator and compositor.
type Engine struct {
	mem Memory
	log *vmlog.Logger

	collisions []CollisionRecord
	seenSS     map[[2]uint8]bool
	overflow   bool
}

// New creates a sprite engine over the given bus-backed memory view.
func New(mem Memory, log *vmlog.Logger) *Engine {
	return &Engine{mem: mem, log: log}
}

// ResetFrame clears per-frame collision/overflow state, both the
// published registers and the engine's internal bookkeeping (spec
// §4.4 step 1).
func (e *Engine) ResetFrame() {
	e.mem.ResetCollisionFlags()
	e.mem.SetCollisionCount(0)
	e.mem.SetSpriteOverflow(false)
	e.collisions = e.collisions[:0]
	e.seenSS = make(map[[2]uint8]bool)
	e.overflow = false
}

func (e *Engine) spriteCount() uint8 {
	n := e.mem.Read8(bus.RegSpriteCount)
	if n > MaxSprites {
		return MaxSprites
	}
	return n
}

func (e *Engine) scanlineLimit() int {
	raw := e.mem.Read8(bus.RegSpriteScanLimit)
	if raw == 0 {
		return 8
	}
	if raw > 16 {
		return 16
	}
	return int(raw)
}

// evaluateScanline runs the ascending-id evaluation pass for line y,
// returning the active-sprite list in ascending id order.
func (e *Engine) evaluateScanline(y uint8) []activeSprite {
	limit := e.scanlineLimit()
	count := e.spriteCount()
	active := make([]activeSprite, 0, limit)

	for id := uint8(0); id < count; id++ {
		attr := readAttribute(e.mem, id)
		if uint16(y) < uint16(attr.Y) || uint16(y) >= uint16(attr.Y)+SpriteSize {
			continue
		}
		row := y - attr.Y
		if attr.FlipV {
			row = SpriteSize - 1 - row
		}
		var rowData [BytesPerRow]uint8
		base := int(attr.Idx)*BytesPerSprite + int(row)*BytesPerRow
		for i := 0; i < BytesPerRow; i++ {
			rowData[i] = e.mem.ReadFromBank(attr.Bank, base+i)
		}
		active = append(active, activeSprite{id: id, attr: attr, row: rowData})
		if len(active) == limit {
			e.overflow = true
			break
		}
	}
	return active
}

// NoOwner marks a pixel in the owners slice RenderScanline returns as
// not covered by any sprite.
const NoOwner uint8 = 0xFF

// RenderScanline evaluates and composites scanline y over w pixels. bg
// is the background buffer consulted for behindBG sprites; pass nil to
// treat the background as fully transparent. Returns the composited
// sprite line (0 means transparent) and, for
// each pixel, which sprite id owns it (NoOwner if none) — the pipeline
// uses the latter to drive sprite-tile collision lookups.
func (e *Engine) RenderScanline(y uint8, w int, bg []uint8) (line, owners []uint8) {
	line = make([]uint8, w)
	owners = make([]uint8, w)
	for i := range owners {
		owners[i] = NoOwner
	}
	if e.mem.Read8(bus.RegSpriteEnable)&0x01 == 0 {
		return line, owners
	}

	active := e.evaluateScanline(y)

	for i := len(active) - 1; i >= 0; i-- {
		sp := active[i]
		for cx := 0; cx < SpriteSize; cx++ {
			sx := int(sp.attr.X) + cx
			if sx < 0 || sx >= w {
				continue
			}
			displayCx := cx
			if sp.attr.FlipH {
				displayCx = SpriteSize - 1 - cx
			}
			b := sp.row[displayCx/2]
			var pixel uint8
			if displayCx%2 == 0 {
				pixel = (b >> 4) & 0xF
			} else {
				pixel = b & 0xF
			}
			if pixel == 0 {
				continue
			}
			if sp.attr.BehindBG && bg != nil && bg[sx] != 0 {
				continue
			}
			if owners[sx] != NoOwner && owners[sx] != sp.id {
				e.recordSSCollision(owners[sx], sp.id)
			}
			line[sx] = pixel + sp.attr.PaletteOffset*16
			owners[sx] = sp.id
		}
	}
	return line, owners
}

func (e *Engine) recordSSCollision(a, b uint8) {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	key := [2]uint8{lo, hi}
	if e.seenSS[key] {
		return
	}
	if len(e.collisions) >= MaxCollisionRecords {
		return
	}
	e.seenSS[key] = true
	e.collisions = append(e.collisions, CollisionRecord{SpriteID: lo, Data: hi, TypeFlags: 0})
}

// RecordTileCollision is called by the pipeline after consulting the
// tilemap and tile-properties table; only takes effect when
// COLLISION_MODE bit 1 (sprite-tile) is set.
func (e *Engine) RecordTileCollision(spriteID, tileType, sides uint8) {
	if e.mem.Read8(bus.RegCollisionMode)&0x02 == 0 {
		return
	}
	if len(e.collisions) >= MaxCollisionRecords {
		return
	}
	e.collisions = append(e.collisions, CollisionRecord{
		SpriteID:  spriteID,
		Data:      tileType,
		TypeFlags: collTileBit | (sides & 0xF),
	})
}

type aabb struct {
	id         uint8
	x0, y0     int
	x1, y1     int
}

// DetectBoundingBoxCollisions is the alternative to pixel-perfect
// compositing: when COLLISION_MODE has sprite-sprite=1 and
// pixel-perfect=0, it runs once per frame over all sprite pairs,
// recording a collision for any pair whose 16x16 boxes overlap (spec
// §4.4 "Bounding-box collision path").
func (e *Engine) DetectBoundingBoxCollisions() {
	mode := e.mem.Read8(bus.RegCollisionMode)
	if mode&0x01 == 0 || mode&0x04 != 0 {
		return
	}
	count := e.spriteCount()
	boxes := make([]aabb, 0, count)
	for id := uint8(0); id < count; id++ {
		a := readAttribute(e.mem, id)
		boxes = append(boxes, aabb{
			id: id,
			x0: int(a.X), y0: int(a.Y),
			x1: int(a.X) + SpriteSize, y1: int(a.Y) + SpriteSize,
		})
	}
	for i := 0; i < len(boxes); i++ {
		for j := i + 1; j < len(boxes); j++ {
			if boxesOverlap(boxes[i], boxes[j]) {
				e.recordSSCollision(boxes[i].id, boxes[j].id)
			}
		}
	}
}

func boxesOverlap(a, b aabb) bool {
	return a.x0 < b.x1 && b.x0 < a.x1 && a.y0 < b.y1 && b.y0 < a.y1
}

// FinalizeFrame publishes SPRITE_OVERFLOW, the collision ring,
// COLLISION_COUNT, and COLLISION_FLAGS for the frame just rendered
//.
func (e *Engine) FinalizeFrame() {
	e.mem.SetSpriteOverflow(e.overflow)

	n := len(e.collisions)
	if n > MaxCollisionRecords {
		n = MaxCollisionRecords
	}
	var flags uint8
	for i := 0; i < n; i++ {
		rec := e.collisions[i]
		addr := bus.CollisionRingBase + uint16(i)*3
		e.mem.Write8(addr, rec.SpriteID)
		e.mem.Write8(addr+1, rec.Data)
		e.mem.Write8(addr+2, rec.TypeFlags)
		if rec.TypeFlags&collTileBit != 0 {
			flags |= 0x02
		} else {
			flags |= 0x01
		}
	}
	e.mem.SetCollisionCount(uint8(n))
	if flags != 0 {
		e.mem.OrCollisionFlags(flags)
	}
	if e.overflow {
		e.log.Warn(vmlog.ComponentSprite, "scanline sprite limit reached this frame")
	}
}
