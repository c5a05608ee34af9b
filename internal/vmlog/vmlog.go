// Package vmlog is the machine's structured logger: per-component,
// per-severity gating in front of glog's leveled sinks.
package vmlog

import (
	"sync"

	"github.com/golang/glog"
)

// Component identifies the subsystem an entry came from. Filtering is
// per-component so a host can trace just the sprite engine without
// drowning in CPU instruction traces.
type Component uint8

const (
	ComponentStore Component = iota
	ComponentBus
	ComponentCPU
	ComponentSprite
	ComponentTilemap
	ComponentPipeline
	ComponentConsole
	componentCount
)

func (c Component) String() string {
	switch c {
	case ComponentStore:
		return "store"
	case ComponentBus:
		return "bus"
	case ComponentCPU:
		return "cpu"
	case ComponentSprite:
		return "sprite"
	case ComponentTilemap:
		return "tilemap"
	case ComponentPipeline:
		return "pipeline"
	case ComponentConsole:
		return "console"
	default:
		return "unknown"
	}
}

// Level orders severities the same way glog's V-levels do: higher value,
// more verbose. Error is always emitted regardless of gating.
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelTrace
)

// Logger gates component/level pairs before handing the formatted entry
// to glog. The zero value has every component disabled except Error,
// so logging is silent unless a caller opts in.
type Logger struct {
	mu      sync.RWMutex
	enabled [componentCount]bool
	level   Level
}

// New creates a Logger at the given verbosity; pass LevelError to mute
// everything but halting failures.
func New(level Level) *Logger {
	return &Logger{level: level}
}

// SetComponentEnabled toggles trace/info/warn emission for one component.
// Error-level entries are never gated by this switch.
func (l *Logger) SetComponentEnabled(c Component, enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled[c] = enabled
}

// SetLevel changes the maximum severity that will be emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) gate(c Component, level Level) bool {
	if level == LevelError {
		return true
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled[c] && level <= l.level
}

// Logf records one entry. A nil Logger is a valid no-op receiver so
// components can be constructed without a logger in tests.
func (l *Logger) Logf(c Component, level Level, format string, args ...any) {
	if l == nil || !l.gate(c, level) {
		return
	}
	prefixed := "[" + c.String() + "] " + format
	switch level {
	case LevelError:
		glog.Errorf(prefixed, args...)
	case LevelWarn:
		glog.Warningf(prefixed, args...)
	default:
		glog.Infof(prefixed, args...)
	}
}

func (l *Logger) Error(c Component, format string, args ...any) {
	l.Logf(c, LevelError, format, args...)
}

func (l *Logger) Warn(c Component, format string, args ...any) {
	l.Logf(c, LevelWarn, format, args...)
}

func (l *Logger) Info(c Component, format string, args ...any) {
	l.Logf(c, LevelInfo, format, args...)
}

func (l *Logger) Trace(c Component, format string, args ...any) {
	l.Logf(c, LevelTrace, format, args...)
}
