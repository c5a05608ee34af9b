// Package console assembles BankedStore, MemoryBus, CPU, SpriteEngine,
// TilemapEngine, and FramePipeline into Machine: the host-facing
// controller and CLI surface (run/pause/step/reset/fullReset/setPC/
// setBreakpoints/snapshot/mount/unmount).
//
// The CPU actor and the render actor run as two independent goroutines
// exchanging commands over channels, rather than one coordinator
// stepping every component in lockstep.
package console

import (
	"fmt"
	"time"

	"github.com/foundrycade/pixelforge/internal/bus"
	"github.com/foundrycade/pixelforge/internal/cpu"
	"github.com/foundrycade/pixelforge/internal/input"
	"github.com/foundrycade/pixelforge/internal/pipeline"
	"github.com/foundrycade/pixelforge/internal/romfile"
	"github.com/foundrycade/pixelforge/internal/sprite"
	"github.com/foundrycade/pixelforge/internal/store"
	"github.com/foundrycade/pixelforge/internal/tilemap"
	"github.com/foundrycade/pixelforge/internal/vmlog"
)

// FrameRate is the render actor's tick rate.
const FrameRate = 60

// Snapshot is a point-in-time view of machine state, the CLI surface's
// snapshot() result.
type Snapshot struct {
	CPU            cpu.State
	Halted         bool
	HaltError      error
	Running        bool
	Paused         bool
	CartridgeBanks int
	Frame          []uint8
}

type commandKind int

const (
	cmdRun commandKind = iota
	cmdPause
	cmdStep
	cmdReset
	cmdFullReset
	cmdSetPC
	cmdSetBreakpoints
	cmdSnapshot
	cmdMount
	cmdUnmount
	cmdShutdown
)

type command struct {
	kind        commandKind
	pc          uint16
	breakpoints []uint16
	rom         []byte
	reply       chan any
}

// Machine is the assembled console: the five core components plus the
// CPU actor and render actor goroutines driving them.
type Machine struct {
	store    *store.Store
	bus      *bus.Bus
	cpu      *cpu.CPU
	sprites  *sprite.Engine
	tiles    *tilemap.Engine
	pipeline *pipeline.Pipeline
	input    *input.Controllers
	log      *vmlog.Logger

	commands chan command
	frameCmd chan frameCommand
	done     chan struct{}
}

type frameCommandKind int

const (
	frameStart frameCommandKind = iota
	frameStop
	frameSetVisible
)

type frameCommand struct {
	kind    frameCommandKind
	visible bool
}

// New assembles a Machine with a fresh store sized for the maximum
// cartridge, and starts both actors. The CPU actor begins paused; the
// render actor begins running.
func New(log *vmlog.Logger) *Machine {
	s := store.NewMax(log)
	b := bus.New(s, log)
	spriteEngine := sprite.New(b, log)
	tileEngine := tilemap.New(b, log)
	in := input.New()
	pipe := pipeline.New(b, spriteEngine, tileEngine, in, log)
	c := cpu.New(b, b, log)

	m := &Machine{
		store:    s,
		bus:      b,
		cpu:      c,
		sprites:  spriteEngine,
		tiles:    tileEngine,
		pipeline: pipe,
		input:    in,
		log:      log,
		commands: make(chan command),
		frameCmd: make(chan frameCommand, 4),
		done:     make(chan struct{}),
	}
	go m.runCPUActor()
	go m.runRenderActor()
	return m
}

// Input exposes the controller state holder so a host can push button
// events.
func (m *Machine) Input() *input.Controllers {
	return m.input
}

func (m *Machine) call(cmd command) any {
	cmd.reply = make(chan any, 1)
	m.commands <- cmd
	return <-cmd.reply
}

func (m *Machine) cast(cmd command) {
	m.commands <- cmd
}

// Run resumes the CPU actor.
func (m *Machine) Run() {
	m.cast(command{kind: cmdRun})
}

// Pause suspends the CPU actor between instructions.
func (m *Machine) Pause() {
	m.cast(command{kind: cmdPause})
}

// Step executes exactly one instruction regardless of run state (spec
// §6 "step"), returning any error the instruction raised.
func (m *Machine) Step() error {
	reply := m.call(command{kind: cmdStep})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// Reset performs a warm reset: CPU state, RAM, and MMIO flags reset;
// cartridge stays mounted.
func (m *Machine) Reset() {
	m.cast(command{kind: cmdReset})
}

// FullReset performs Reset plus unmounting the cartridge.
func (m *Machine) FullReset() {
	m.cast(command{kind: cmdFullReset})
}

// SetPC overrides the program counter.
func (m *Machine) SetPC(pc uint16) {
	m.cast(command{kind: cmdSetPC, pc: pc})
}

// SetBreakpoints replaces the breakpoint set. Breakpoints fire between
// instructions, before the next fetch.
func (m *Machine) SetBreakpoints(pcs []uint16) {
	m.cast(command{kind: cmdSetBreakpoints, breakpoints: pcs})
}

// Mount validates and loads a cartridge image, then sets PC to 0 in
// bank 0.
func (m *Machine) Mount(rom []byte) error {
	reply := m.call(command{kind: cmdMount, rom: rom})
	if err, ok := reply.(error); ok {
		return err
	}
	return nil
}

// Unmount hides the cartridge.
func (m *Machine) Unmount() {
	m.cast(command{kind: cmdUnmount})
}

// Snapshot returns a consistent point-in-time view of CPU state, run
// state, and the last composited frame.
func (m *Machine) Snapshot() Snapshot {
	return m.call(command{kind: cmdSnapshot}).(Snapshot)
}

// StartRendering/StopRendering/SetVisible drive the render actor (spec
// §5 "start/stop/setVisible to the render actor").
func (m *Machine) StartRendering() {
	m.frameCmd <- frameCommand{kind: frameStart}
}

func (m *Machine) StopRendering() {
	m.frameCmd <- frameCommand{kind: frameStop}
}

func (m *Machine) SetVisible(v bool) {
	m.frameCmd <- frameCommand{kind: frameSetVisible, visible: v}
}

// Shutdown stops both actors for good (unlike StopRendering/Pause,
// which are resumable). Not part of the CLI surface; exists so hosts
// (and tests) can tear a Machine down deterministically.
func (m *Machine) Shutdown() {
	m.pipeline.Stop()
	close(m.done)
}

// runCPUActor is the CPU actor's dedicated loop: it suspends
// only between instructions and when a host command arrives.
func (m *Machine) runCPUActor() {
	running := false
	halted := false
	var haltErr error
	breakpoints := newBreakpointSet()

	step := func() {
		if halted {
			return
		}
		if breakpoints.hit(m.cpu.State.PC) {
			running = false
			return
		}
		if err := m.cpu.Step(); err != nil {
			halted = true
			running = false
			haltErr = err
			m.log.Error(vmlog.ComponentConsole, "cpu actor halted: %v", err)
		}
	}

	for {
		if running && !halted {
			select {
			case <-m.done:
				return
			case cmd := <-m.commands:
				m.handleCPUCommand(cmd, &running, &halted, &haltErr, breakpoints)
			default:
				step()
			}
			continue
		}

		select {
		case <-m.done:
			return
		case cmd := <-m.commands:
			m.handleCPUCommand(cmd, &running, &halted, &haltErr, breakpoints)
		}
	}
}

func (m *Machine) handleCPUCommand(cmd command, running, halted *bool, haltErr *error, breakpoints *breakpointSet) {
	switch cmd.kind {
	case cmdRun:
		if !*halted {
			*running = true
		}
	case cmdPause:
		*running = false
	case cmdStep:
		if !*halted {
			if err := m.cpu.Step(); err != nil {
				*halted = true
				*haltErr = err
				m.log.Error(vmlog.ComponentConsole, "cpu actor halted: %v", err)
				cmd.reply <- err
				return
			}
			cmd.reply <- nil
			return
		}
		cmd.reply <- *haltErr
	case cmdReset:
		m.bus.Reset()
		m.cpu.Reset()
		*halted = false
		*haltErr = nil
		*running = false
	case cmdFullReset:
		m.bus.FullReset()
		m.cpu.Reset()
		*halted = false
		*haltErr = nil
		*running = false
	case cmdSetPC:
		m.cpu.SetPC(cmd.pc)
	case cmdSetBreakpoints:
		breakpoints.setAll(cmd.breakpoints)
	case cmdMount:
		err := m.mountLocked(cmd.rom)
		if err != nil {
			m.log.Error(vmlog.ComponentConsole, "%v", err)
		}
		cmd.reply <- err
	case cmdUnmount:
		m.store.Unmount()
	case cmdSnapshot:
		cmd.reply <- Snapshot{
			CPU:            m.cpu.State,
			Halted:         *halted,
			HaltError:      *haltErr,
			Running:        *running,
			Paused:         !*running,
			CartridgeBanks: m.store.CartridgeBankCount(),
			Frame:          m.pipeline.Frame(),
		}
	}
}

func (m *Machine) mountLocked(rom []byte) error {
	if err := romfile.Validate(rom); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	if err := m.store.Mount(rom); err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	m.cpu.SetPC(0)
	return nil
}

// runRenderActor is the render actor's dedicated loop: a 60 Hz ticker
// calling Pipeline.RunFrame, honoring start/stop/setVisible from the
// host controller.
func (m *Machine) runRenderActor() {
	ticker := time.NewTicker(time.Second / FrameRate)
	defer ticker.Stop()

	rendering := true
	for {
		select {
		case <-m.done:
			return
		case cmd := <-m.frameCmd:
			switch cmd.kind {
			case frameStart:
				rendering = true
			case frameStop:
				rendering = false
			case frameSetVisible:
				m.pipeline.SetVisible(cmd.visible)
			}
		case <-ticker.C:
			if rendering {
				m.pipeline.RunFrame()
			}
		}
	}
}
