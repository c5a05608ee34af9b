package sprite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foundrycade/pixelforge/internal/bus"
)

// fakeMemory is a minimal, map-free stand-in for *bus.Bus used to unit
// test the sprite engine without pulling in the whole bus/store stack.
type fakeMemory struct {
	lower          [0x10000]uint8
	banks          map[uint8][]uint8
	spriteOverflow bool
	collisionCount uint8
	collisionFlags uint8
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{banks: make(map[uint8][]uint8)}
}

func (m *fakeMemory) Read8(addr uint16) uint8     { return m.lower[addr] }
func (m *fakeMemory) Write8(addr uint16, v uint8) { m.lower[addr] = v }
func (m *fakeMemory) ReadFromBank(bank uint8, offset int) uint8 {
	b := m.banks[bank]
	if offset < 0 || offset >= len(b) {
		return 0xFF
	}
	return b[offset]
}
func (m *fakeMemory) SetSpriteOverflow(v bool)   { m.spriteOverflow = v }
func (m *fakeMemory) SetCollisionCount(n uint8)  { m.collisionCount = n }
func (m *fakeMemory) OrCollisionFlags(bits uint8) { m.collisionFlags |= bits }
func (m *fakeMemory) ResetCollisionFlags()       { m.collisionFlags = 0 }

func (m *fakeMemory) putAttribute(id uint8, a Attribute) {
	base := bus.SpriteAttrTableBase + uint16(id)*RecordSize
	m.lower[base] = a.X
	m.lower[base+1] = a.Y
	m.lower[base+2] = a.Idx
	var flags uint8
	if a.FlipH {
		flags |= 0x80
	}
	if a.FlipV {
		flags |= 0x40
	}
	if a.BehindBG {
		flags |= 0x20
	}
	flags |= (a.PaletteOffset & 0x3) << 3
	m.lower[base+3] = flags
	m.lower[base+4] = a.Bank
}

// opaqueBitmap returns a 16x16 4bpp bitmap (128 bytes) where every
// pixel is color index 1.
func opaqueBitmap() []uint8 {
	bmp := make([]uint8, BytesPerSprite)
	for i := range bmp {
		bmp[i] = 0x11
	}
	return bmp
}

func TestScanlineOverflow(t *testing.T) {
	mem := newFakeMemory()
	mem.lower[bus.RegSpriteEnable] = 0x01
	mem.lower[bus.RegSpriteCount] = 12
	mem.lower[bus.RegSpriteScanLimit] = 8
	mem.banks[0] = opaqueBitmap()

	for id := uint8(0); id < 12; id++ {
		mem.putAttribute(id, Attribute{X: id * 4, Y: 50, Idx: 0, Bank: 0})
	}

	e := New(mem, nil)
	e.ResetFrame()
	active := e.evaluateScanline(55)
	assert.Len(t, active, 8)
	assert.True(t, e.overflow)

	e.FinalizeFrame()
	assert.True(t, mem.spriteOverflow)
}

func TestSSCollisionIDs(t *testing.T) {
	mem := newFakeMemory()
	mem.lower[bus.RegSpriteEnable] = 0x01
	mem.lower[bus.RegSpriteCount] = 8
	mem.banks[0] = opaqueBitmap()

	mem.putAttribute(3, Attribute{X: 10, Y: 20, Idx: 0, Bank: 0})
	mem.putAttribute(7, Attribute{X: 15, Y: 20, Idx: 0, Bank: 0})

	e := New(mem, nil)
	e.ResetFrame()
	e.RenderScanline(20, 256, nil)
	e.FinalizeFrame()

	assert.Equal(t, uint8(1), mem.collisionCount)
	assert.Equal(t, uint8(0x01), mem.collisionFlags&0x01)
	wantRec := CollisionRecord{SpriteID: 3, Data: 7, TypeFlags: 0}
	assert.Equal(t, []CollisionRecord{wantRec}, e.collisions)
}

func TestLowerIDWinsCompositingTies(t *testing.T) {
	mem := newFakeMemory()
	mem.lower[bus.RegSpriteEnable] = 0x01
	mem.lower[bus.RegSpriteCount] = 2
	mem.banks[0] = opaqueBitmap()
	mem.putAttribute(0, Attribute{X: 0, Y: 0, Idx: 0, Bank: 0})
	mem.putAttribute(1, Attribute{X: 0, Y: 0, Idx: 0, Bank: 0})

	e := New(mem, nil)
	e.ResetFrame()
	line, owners := e.RenderScanline(0, 16, nil)
	assert.Equal(t, uint8(1), line[0], "sprite 0's pixel value should win the tie")
	assert.Equal(t, uint8(0), owners[0])
}

func TestTransparentLineWhenSpritesDisabled(t *testing.T) {
	mem := newFakeMemory()
	e := New(mem, nil)
	e.ResetFrame()
	line, owners := e.RenderScanline(0, 16, nil)
	for _, px := range line {
		assert.Equal(t, uint8(0), px)
	}
	for _, o := range owners {
		assert.Equal(t, NoOwner, o)
	}
}
