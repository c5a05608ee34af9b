package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundrycade/pixelforge/internal/store"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m := New(nil)
	t.Cleanup(m.Shutdown)
	return m
}

func TestResetSnapshotMatchesPostResetInvariant(t *testing.T) {
	m := newTestMachine(t)
	snap := m.Snapshot()
	assert.Equal(t, uint16(0), snap.CPU.PC)
	assert.Equal(t, uint16(0x7FFF), snap.CPU.SP)
	assert.Equal(t, uint8(0), snap.CPU.Status)
	assert.Equal(t, [6]uint8{}, snap.CPU.R)
	assert.False(t, snap.Halted)
}

func TestMountRejectsBadSize(t *testing.T) {
	m := newTestMachine(t)
	err := m.Mount(make([]byte, store.BankSize+1))
	require.Error(t, err)
}

func TestMountSetsPCToZeroAndReportsBankCount(t *testing.T) {
	m := newTestMachine(t)
	rom := make([]byte, store.BankSize*2)
	rom[0] = 0xAA
	require.NoError(t, m.Mount(rom))

	snap := m.Snapshot()
	assert.Equal(t, uint16(0), snap.CPU.PC)
	assert.Equal(t, 2, snap.CartridgeBanks)
}

func TestUnmountHidesCartridge(t *testing.T) {
	m := newTestMachine(t)
	rom := make([]byte, store.BankSize)
	require.NoError(t, m.Mount(rom))
	m.Unmount()

	// Give the CPU actor's command loop a moment to process (it runs on
	// its own goroutine); Snapshot() round-trips through the same
	// channel so it is naturally ordered after Unmount.
	snap := m.Snapshot()
	assert.Equal(t, 0, snap.CartridgeBanks)
}

func TestStepHaltsOnIllegalOpcode(t *testing.T) {
	m := newTestMachine(t)
	rom := make([]byte, store.BankSize)
	rom[0] = 0xF0 // EXT with an unrecognized sub-opcode byte2
	rom[1] = 0xFF
	require.NoError(t, m.Mount(rom))

	err := m.Step()
	require.Error(t, err)

	snap := m.Snapshot()
	assert.True(t, snap.Halted)
	assert.Error(t, snap.HaltError)
}

func TestRunThenPauseStopsAdvancingPC(t *testing.T) {
	m := newTestMachine(t)
	rom := make([]byte, store.BankSize)
	// A stream of NOPs (opcode 0, any mode bits) so the CPU actor runs
	// freely without halting.
	require.NoError(t, m.Mount(rom))

	m.Run()
	time.Sleep(20 * time.Millisecond)
	m.Pause()
	time.Sleep(5 * time.Millisecond)

	snap1 := m.Snapshot()
	time.Sleep(20 * time.Millisecond)
	snap2 := m.Snapshot()

	assert.False(t, snap1.Running)
	assert.Equal(t, snap1.CPU.PC, snap2.CPU.PC, "paused CPU actor must not advance PC")
}

func TestBreakpointStopsRunBeforeFetch(t *testing.T) {
	m := newTestMachine(t)
	rom := make([]byte, store.BankSize)
	require.NoError(t, m.Mount(rom))
	m.SetBreakpoints([]uint16{3})

	m.Run()
	time.Sleep(20 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint16(3), snap.CPU.PC)
	assert.False(t, snap.Running, "hitting a breakpoint must pause the CPU actor")
}

func TestFullResetUnmountsCartridgeAndResetsCPU(t *testing.T) {
	m := newTestMachine(t)
	rom := make([]byte, store.BankSize)
	require.NoError(t, m.Mount(rom))
	m.SetPC(0x1234)

	m.FullReset()

	snap := m.Snapshot()
	assert.Equal(t, uint16(0), snap.CPU.PC)
	assert.Equal(t, 0, snap.CartridgeBanks)
}
