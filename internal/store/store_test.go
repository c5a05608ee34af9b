package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpopulatedBanksReadAsOpenBus(t *testing.T) {
	s := NewMax(nil)
	for bank := uint8(FirstUnpopBank); bank <= LastUnpopBank; bank++ {
		assert.Equal(t, uint8(0xFF), s.Read(bank, 0))
		s.Write(bank, 0, 0x42)
		assert.Equal(t, uint8(0xFF), s.Read(bank, 0), "writes to unpopulated banks must be no-ops")
	}
}

func TestUnmountedCartridgeReadsAsOpenBus(t *testing.T) {
	s := NewMax(nil)
	assert.Equal(t, uint8(0xFF), s.Read(FirstROMBank, 0))
}

func TestROMIsReadOnlyAfterMount(t *testing.T) {
	s := NewMax(nil)
	rom := make([]uint8, BankSize)
	rom[10] = 0x77
	require.NoError(t, s.Mount(rom))

	s.Write(FirstROMBank, 10, 0x99)
	assert.Equal(t, uint8(0x77), s.Read(FirstROMBank, 10), "writes to ROM banks must be no-ops")
}

func TestMountRejectsNonMultipleOfBankSize(t *testing.T) {
	s := NewMax(nil)
	err := s.Mount(make([]uint8, BankSize+1))
	require.Error(t, err)
	var target *ErrInvalidROMSize
	assert.ErrorAs(t, err, &target)
}

func TestUnmountHidesCartridgeWithoutErasingBytes(t *testing.T) {
	s := NewMax(nil)
	rom := make([]uint8, BankSize)
	rom[0] = 0xAB
	require.NoError(t, s.Mount(rom))
	s.Unmount()

	assert.Equal(t, uint8(0xFF), s.Read(FirstROMBank, 0))
	require.NoError(t, s.Mount(rom))
	assert.Equal(t, uint8(0xAB), s.Read(FirstROMBank, 0))
}

func TestResetRAMZeroesAllBanksButNotCartridge(t *testing.T) {
	s := NewMax(nil)
	rom := make([]uint8, BankSize)
	rom[0] = 0xCC
	require.NoError(t, s.Mount(rom))
	s.Write(FirstRAMBank, 5, 0x11)

	s.ResetRAM()

	assert.Equal(t, uint8(0), s.Read(FirstRAMBank, 5))
	assert.Equal(t, uint8(0xCC), s.Read(FirstROMBank, 0))
}

func TestNewRejectsBufferSmallerThanMinShared(t *testing.T) {
	_, err := New(MinSharedSize-1, nil)
	require.Error(t, err)
	var target *ErrBufferTooSmall
	assert.ErrorAs(t, err, &target)
}
