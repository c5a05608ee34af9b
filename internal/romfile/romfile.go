// Package romfile validates cartridge ROM images and encodes/decodes the
// companion asset wire formats: a flat, headerless byte sequence whose
// length is a positive multiple of BankSize and at most MaxROMBanks
// banks.
package romfile

import (
	"encoding/binary"
	"fmt"

	"github.com/foundrycade/pixelforge/internal/store"
)

// ErrInvalidROMSize mirrors store.ErrInvalidROMSize for callers that
// validate a candidate image before ever touching a Store (e.g.
// console.Machine.Mount, which checks the image before copying it into
// the Store).
type ErrInvalidROMSize struct {
	Len int
}

func (e *ErrInvalidROMSize) Error() string {
	return fmt.Sprintf("invalid cartridge ROM size: %d bytes is not a positive multiple of %d (or exceeds %d banks)", e.Len, store.BankSize, store.MaxROMBanks)
}

// Validate checks a candidate cartridge image against the cartridge
// ROM file format: flat, headerless, length a positive multiple of
// store.BankSize, at most store.MaxROMBanks banks.
func Validate(rom []byte) error {
	n := len(rom)
	if n == 0 || n%store.BankSize != 0 || n/store.BankSize > store.MaxROMBanks {
		return &ErrInvalidROMSize{Len: n}
	}
	return nil
}

// BankCount returns how many store.BankSize banks rom occupies. Callers
// should Validate first; BankCount does not itself validate.
func BankCount(rom []byte) int {
	return len(rom) / store.BankSize
}

// Build pads program bytes out to a whole number of banks with trailing
// zero fill. Used by consolectl build-rom and by tests that want an
// n-bank image without hand-sizing a byte slice.
func Build(program []byte, banks int) ([]byte, error) {
	if banks <= 0 || banks > store.MaxROMBanks {
		return nil, fmt.Errorf("invalid bank count %d (must be 1-%d)", banks, store.MaxROMBanks)
	}
	total := banks * store.BankSize
	if len(program) > total {
		return nil, fmt.Errorf("program is %d bytes, does not fit in %d bank(s) (%d bytes)", len(program), banks, total)
	}
	image := make([]byte, total)
	copy(image, program)
	return image, nil
}

// SpriteFileHeader is the 8-byte .sbin header.
type SpriteFileHeader struct {
	SpriteCount uint16
	Version     uint16
}

const sbinVersion = 1

// SpritePlacement is one 8-byte .sbin record.
type SpritePlacement struct {
	X, Y          uint16
	SpriteIndex   uint8
	FlipH, FlipV  bool
	Priority      bool
	PaletteOffset uint8
	BankOffset    uint8
	TypeID        uint8
}

func (s SpritePlacement) flagsByte() uint8 {
	var f uint8
	if s.FlipH {
		f |= 0x80
	}
	if s.FlipV {
		f |= 0x40
	}
	if s.Priority {
		f |= 0x20
	}
	f |= (s.PaletteOffset & 0x3) << 3
	return f
}

func decodeSpriteFlags(f uint8) (flipH, flipV, priority bool, paletteOffset uint8) {
	return f&0x80 != 0, f&0x40 != 0, f&0x20 != 0, (f >> 3) & 0x3
}

// EncodeSpriteFile serializes placements into the .sbin wire format:
// little-endian throughout, 8-byte header then one 8-byte record per
// sprite.
func EncodeSpriteFile(placements []SpritePlacement) []byte {
	buf := make([]byte, 8+len(placements)*8)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(placements)))
	binary.LittleEndian.PutUint16(buf[2:4], sbinVersion)
	for i, p := range placements {
		off := 8 + i*8
		binary.LittleEndian.PutUint16(buf[off:off+2], p.X)
		binary.LittleEndian.PutUint16(buf[off+2:off+4], p.Y)
		buf[off+4] = p.SpriteIndex
		buf[off+5] = p.flagsByte()
		buf[off+6] = p.BankOffset
		buf[off+7] = p.TypeID
	}
	return buf
}

// ErrTruncatedAsset is returned by the Decode* functions when the byte
// slice is shorter than its own declared length.
type ErrTruncatedAsset struct {
	Want, Got int
}

func (e *ErrTruncatedAsset) Error() string {
	return fmt.Sprintf("truncated asset: expected at least %d bytes, got %d", e.Want, e.Got)
}

// DecodeSpriteFile parses a .sbin image.
func DecodeSpriteFile(data []byte) ([]SpritePlacement, error) {
	if len(data) < 8 {
		return nil, &ErrTruncatedAsset{Want: 8, Got: len(data)}
	}
	count := int(binary.LittleEndian.Uint16(data[0:2]))
	want := 8 + count*8
	if len(data) < want {
		return nil, &ErrTruncatedAsset{Want: want, Got: len(data)}
	}
	out := make([]SpritePlacement, count)
	for i := range out {
		off := 8 + i*8
		flipH, flipV, priority, paletteOffset := decodeSpriteFlags(data[off+5])
		out[i] = SpritePlacement{
			X:             binary.LittleEndian.Uint16(data[off : off+2]),
			Y:             binary.LittleEndian.Uint16(data[off+2 : off+4]),
			SpriteIndex:   data[off+4],
			FlipH:         flipH,
			FlipV:         flipV,
			Priority:      priority,
			PaletteOffset: paletteOffset,
			BankOffset:    data[off+6],
			TypeID:        data[off+7],
		}
	}
	return out, nil
}

// TileFileEntry is one 2-byte .tbin tile entry, sharing its attribute
// encoding with the tilemap package's TileEntry.
type TileFileEntry struct {
	Index                  uint8
	FlipH, FlipV, Priority bool
	Palette                uint8
	BankOffset             uint8
}

func (e TileFileEntry) attrByte() uint8 {
	var a uint8
	if e.FlipH {
		a |= 0x80
	}
	if e.FlipV {
		a |= 0x40
	}
	if e.Priority {
		a |= 0x20
	}
	a |= (e.Palette & 0x3) << 3
	a |= e.BankOffset & 0x3
	return a
}

func decodeTileAttr(a uint8) (flipH, flipV, priority bool, palette, bankOffset uint8) {
	return a&0x80 != 0, a&0x40 != 0, a&0x20 != 0, (a >> 3) & 0x3, a & 0x3
}

const tbinMaxBytes = 32768

// EncodeTilemapFile serializes a width*height grid of tile entries into
// the .tbin wire format: 8-byte header (u16 LE width, u16 LE height, 4
// reserved bytes) then width*height 2-byte entries, row-major.
func EncodeTilemapFile(width, height int, entries []TileFileEntry) ([]byte, error) {
	if len(entries) != width*height {
		return nil, fmt.Errorf("expected %d entries for a %dx%d tilemap, got %d", width*height, width, height, len(entries))
	}
	total := 8 + len(entries)*2
	if total > tbinMaxBytes {
		return nil, fmt.Errorf("tilemap file would be %d bytes, exceeds the %d byte maximum", total, tbinMaxBytes)
	}
	buf := make([]byte, total)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(width))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(height))
	for i, e := range entries {
		off := 8 + i*2
		buf[off] = e.Index
		buf[off+1] = e.attrByte()
	}
	return buf, nil
}

// DecodeTilemapFile parses a .tbin image.
func DecodeTilemapFile(data []byte) (width, height int, entries []TileFileEntry, err error) {
	if len(data) < 8 {
		return 0, 0, nil, &ErrTruncatedAsset{Want: 8, Got: len(data)}
	}
	width = int(binary.LittleEndian.Uint16(data[0:2]))
	height = int(binary.LittleEndian.Uint16(data[2:4]))
	want := 8 + width*height*2
	if len(data) < want {
		return 0, 0, nil, &ErrTruncatedAsset{Want: want, Got: len(data)}
	}
	entries = make([]TileFileEntry, width*height)
	for i := range entries {
		off := 8 + i*2
		flipH, flipV, priority, palette, bankOffset := decodeTileAttr(data[off+1])
		entries[i] = TileFileEntry{
			Index:      data[off],
			FlipH:      flipH,
			FlipV:      flipV,
			Priority:   priority,
			Palette:    palette,
			BankOffset: bankOffset,
		}
	}
	return width, height, entries, nil
}
