// Package bus implements MemoryBus: the CPU-visible 64 KiB address space
// (lower memory + a banked upper window) with MMIO write semantics. It
// is the single synchronization point between the CPU actor and the
// render actor: the handful of MMIO flag bytes that both actors touch
// are backed by atomic cells here, while everything else (code,
// tables, the framebuffer) is plain memory that tolerates torn reads
// because each actor only touches it once per relevant boundary.
package bus

import (
	"sync/atomic"

	"github.com/foundrycade/pixelforge/internal/store"
	"github.com/foundrycade/pixelforge/internal/vmlog"
)

// Register addresses in lower memory.
const (
	RegBankReg            = 0x0100
	RegVideoMode          = 0x0101
	RegSpriteEnable       = 0x0104
	RegSpriteCount        = 0x0105
	RegSpriteGraphicsBank = 0x0106
	RegSpriteOverflow     = 0x0107
	RegCollisionFlags     = 0x0108
	RegCollisionCount     = 0x0109
	RegCollisionMode      = 0x010A
	RegSpriteScanLimit    = 0x010B
	RegIntStatus          = 0x0114
	RegIntEnable          = 0x0115
	RegVBlankVecHi        = 0x0132
	RegVBlankVecLo        = 0x0133
	RegScanlineVecHi      = 0x0134
	RegScanlineVecLo      = 0x0135
	RegController1Lo      = 0x0136
	RegController1Hi      = 0x0137
	RegController2Lo      = 0x0138
	RegController2Hi      = 0x0139

	SpriteAttrTableBase = 0x0700
	CollisionRingBase   = 0x0980
	TilePropsTableBase  = 0x0A80
	PaletteRAMBase      = 0x0200
	ScanlinePaletteBase = 0x0600
	FramebufferBase     = 0xB000

	UpperWindowBase = 0x8000
	AddressSpace    = 0x10000
)

// flagByte is an atomically accessed MMIO byte. Bus keeps one of these
// per address that both the CPU actor and the render actor touch;
// every other lower-memory byte lives in the plain Store-backed slice.
type flagByte struct {
	v atomic.Uint32
}

func (f *flagByte) Load() uint8 {
	return uint8(f.v.Load())
}

func (f *flagByte) Store(b uint8) {
	f.v.Store(uint32(b))
}

// OrBits atomically sets the given bits (used by the render actor to
// pulse VBlank/Scanline into INT_STATUS, or collision/overflow flags).
func (f *flagByte) OrBits(bits uint8) {
	for {
		old := f.v.Load()
		next := old | uint32(bits)
		if old == next || f.v.CompareAndSwap(old, next) {
			return
		}
	}
}

// ClearBits implements write-1-to-clear: mem &= ^bits, as a CAS retry
// loop so a concurrent OrBits from the other actor is never lost
//.
func (f *flagByte) ClearBits(bits uint8) {
	for {
		old := f.v.Load()
		next := old &^ uint32(bits)
		if old == next || f.v.CompareAndSwap(old, next) {
			return
		}
	}
}

// Bus is the 64 KiB CPU-visible memory view.
type Bus struct {
	store       *store.Store
	lower       []uint8 // shared view of store's lower 32 KiB
	currentBank uint8
	log         *vmlog.Logger

	intStatus      flagByte
	collisionFlags flagByte
	spriteOverflow flagByte
	controller1Lo  flagByte
	controller1Hi  flagByte
	controller2Lo  flagByte
	controller2Hi  flagByte
}

// New creates a Bus over the given Store.
func New(s *store.Store, log *vmlog.Logger) *Bus {
	return &Bus{
		store: s,
		lower: s.LowerView(),
		log:   log,
	}
}

func (b *Bus) flagFor(addr uint16) *flagByte {
	switch addr {
	case RegIntStatus:
		return &b.intStatus
	case RegCollisionFlags:
		return &b.collisionFlags
	case RegSpriteOverflow:
		return &b.spriteOverflow
	case RegController1Lo:
		return &b.controller1Lo
	case RegController1Hi:
		return &b.controller1Hi
	case RegController2Lo:
		return &b.controller2Lo
	case RegController2Hi:
		return &b.controller2Hi
	default:
		return nil
	}
}

// Read8 reads one byte from the 64 KiB CPU address space.
func (b *Bus) Read8(addr uint16) uint8 {
	if f := b.flagFor(addr); f != nil {
		return f.Load()
	}
	if addr < UpperWindowBase {
		return b.lower[addr]
	}
	return b.store.Read(b.currentBank, int(addr)-UpperWindowBase)
}

// Write8 writes one byte, applying the register map's MMIO side effects.
func (b *Bus) Write8(addr uint16, v uint8) {
	switch addr {
	case RegBankReg:
		b.currentBank = v
		b.lower[addr] = v
		return
	case RegIntStatus:
		b.intStatus.ClearBits(v)
		return
	case RegCollisionFlags:
		b.collisionFlags.ClearBits(v)
		return
	case RegSpriteOverflow, RegCollisionCount:
		// Read-only from the CPU's perspective; writes are dropped.
		return
	}
	if addr < UpperWindowBase {
		b.lower[addr] = v
		return
	}
	b.store.Write(b.currentBank, int(addr)-UpperWindowBase, v)
}

// Read16/Write16 are big-endian (high byte at the lower address) — a
// deliberate mismatch with the little-endian .sbin/.tbin asset formats.
func (b *Bus) Read16(addr uint16) uint16 {
	return uint16(b.Read8(addr))<<8 | uint16(b.Read8(addr+1))
}

func (b *Bus) Write16(addr uint16, v uint16) {
	b.Write8(addr, uint8(v>>8))
	b.Write8(addr+1, uint8(v))
}

// CurrentBank reports the bank currently routed into the upper window.
func (b *Bus) CurrentBank() uint8 {
	return b.currentBank
}

// ReadFromBank bypasses the current bank selection, for renderer use
// — e.g. the sprite engine fetching bitmap
// rows from a sprite's own bank regardless of what the CPU has
// selected.
func (b *Bus) ReadFromBank(bank uint8, offset int) uint8 {
	if offset < 0 || offset >= store.BankSize {
		return 0xFF
	}
	return b.store.Read(bank, offset)
}

// Reset zeroes lower memory, resets RAM banks, and rehomes the bank
// register to 0.
func (b *Bus) Reset() {
	clear(b.lower)
	b.store.ResetRAM()
	b.currentBank = 0
	b.intStatus.Store(0)
	b.collisionFlags.Store(0)
	b.spriteOverflow.Store(0)
	b.controller1Lo.Store(0)
	b.controller1Hi.Store(0)
	b.controller2Lo.Store(0)
	b.controller2Hi.Store(0)
	b.log.Info(vmlog.ComponentBus, "warm reset")
}

// FullReset performs Reset plus unmounting the cartridge.
func (b *Bus) FullReset() {
	b.Reset()
	b.store.Unmount()
	b.log.Info(vmlog.ComponentBus, "full reset (cartridge unmounted)")
}

// IntStatus, IntEnable, VBlankVector, and ScanlineVector implement
// cpu.InterruptSource: the CPU consults these once per instruction
// boundary rather than reaching into the bus's register layout
// directly.
func (b *Bus) IntStatus() uint8 {
	return b.intStatus.Load()
}

func (b *Bus) IntEnable() uint8 {
	return b.lower[RegIntEnable]
}

func (b *Bus) VBlankVector() uint16 {
	return uint16(b.lower[RegVBlankVecHi])<<8 | uint16(b.lower[RegVBlankVecLo])
}

func (b *Bus) ScanlineVector() uint16 {
	return uint16(b.lower[RegScanlineVecHi])<<8 | uint16(b.lower[RegScanlineVecLo])
}

// OrIntStatus atomically sets bits in INT_STATUS; used by the render
// actor to pulse VBlank/Scanline without racing a CPU write-1-to-clear.
func (b *Bus) OrIntStatus(bits uint8) {
	b.intStatus.OrBits(bits)
}

// OrCollisionFlags atomically sets bits in COLLISION_FLAGS.
func (b *Bus) OrCollisionFlags(bits uint8) {
	b.collisionFlags.OrBits(bits)
}

// ResetCollisionFlags zeroes COLLISION_FLAGS outright. Unlike the
// CPU's write-1-to-clear access, the sprite engine fully owns this
// register's value within a frame and resets it unconditionally at
// resetFrame.
func (b *Bus) ResetCollisionFlags() {
	b.collisionFlags.Store(0)
}

// SetSpriteOverflow sets or clears SPRITE_OVERFLOW from the render
// actor (not write-1-to-clear: it is fully owned by the sprite engine,
// which recomputes it once per frame in finalizeFrame).
func (b *Bus) SetSpriteOverflow(v bool) {
	if v {
		b.spriteOverflow.Store(1)
	} else {
		b.spriteOverflow.Store(0)
	}
}

// SetCollisionCount writes the read-only COLLISION_COUNT register; only
// the sprite engine's finalizeFrame should call this.
func (b *Bus) SetCollisionCount(n uint8) {
	b.lower[RegCollisionCount] = n
}

// SetControllerState writes the read-only controller registers from the
// input poller.
func (b *Bus) SetControllerState(pad1, pad2 uint16) {
	b.controller1Lo.Store(uint8(pad1))
	b.controller1Hi.Store(uint8(pad1 >> 8))
	b.controller2Lo.Store(uint8(pad2))
	b.controller2Hi.Store(uint8(pad2 >> 8))
}

// DebugPokeReadOnly writes directly to a read-only register's backing
// cell, bypassing the normal write path. Exists solely for tests that
// need to set up SPRITE_OVERFLOW/COLLISION_COUNT preconditions.
func (b *Bus) DebugPokeReadOnly(addr uint16, v uint8) {
	if f := b.flagFor(addr); f != nil {
		f.Store(v)
		return
	}
	b.lower[addr] = v
}
