// Package log provides the module-scoped logging surface shared by every
// server in this repository. Each package obtains a *Logger keyed by a
// ModuleID constant, so verbosity can be raised or lowered per module
// without restarting the process. Backed by go.uber.org/zap.
package log

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModuleID identifies the package a logger belongs to, so verbosity can be
// raised or lowered per-module without restarting the process.
type ModuleID int

const (
	Common ModuleID = iota
	TTC
	JobStore
	ChainClient
	ChainWatcher
	Prover
	Monitor
	JSONRPC
	CmdMonitor
	CmdProver
)

func (m ModuleID) String() string {
	switch m {
	case Common:
		return "common"
	case TTC:
		return "ttc"
	case JobStore:
		return "jobstore"
	case ChainClient:
		return "chainclient"
	case ChainWatcher:
		return "chainwatcher"
	case Prover:
		return "prover"
	case Monitor:
		return "monitor"
	case JSONRPC:
		return "jsonrpc"
	case CmdMonitor:
		return "cmdmonitor"
	case CmdProver:
		return "cmdprover"
	default:
		return "unknown"
	}
}

var (
	mu        sync.RWMutex
	levels    = map[ModuleID]*zap.AtomicLevel{}
	globalLvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sink      = zapcore.Lock(os.Stderr)
)

func newEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// moduleLevel gates a module's logger on its override if one was set via
// ChangeLogLevelWithID, falling back to the global ceiling. Evaluated per
// log call so level changes apply to loggers created before the change.
type moduleLevel struct{ id ModuleID }

func (m moduleLevel) Enabled(l zapcore.Level) bool {
	mu.RLock()
	override, ok := levels[m.id]
	mu.RUnlock()
	if ok {
		return override.Enabled(l)
	}
	return globalLvl.Enabled(l)
}

// SetGlobalLevel parses LOG_LEVEL-style strings ("debug", "info", "warn",
// "error") and applies the ceiling to every module that has not been given
// a more specific override via ChangeLogLevelWithID.
func SetGlobalLevel(levelName string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(levelName)); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	globalLvl.SetLevel(lvl)
	return nil
}

// ChangeLogLevelWithID raises or lowers the verbosity of a single module,
// independent of the global ceiling.
func ChangeLogLevelWithID(id ModuleID, level zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	l := zap.NewAtomicLevelAt(level)
	levels[id] = &l
}

// ChangeLogLevelWithName resolves a module by its String() name and
// applies the override. Unknown names or levels are errors so a typo in
// LOG_MODULE_LEVELS is caught at startup rather than silently ignored.
func ChangeLogLevelWithName(name, level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("log: bad level %q for module %q: %w", level, name, err)
	}
	for id := Common; id <= CmdProver; id++ {
		if id.String() == name {
			ChangeLogLevelWithID(id, lvl)
			return nil
		}
	}
	return fmt.Errorf("log: unknown module %q", name)
}

// Logger is the per-module handle every package obtains at init time via
// NewModuleLogger. Calls take a message plus alternating key-value pairs:
// logger.Info("message", "key", value, ...).
type Logger struct {
	id ModuleID
	s  *zap.SugaredLogger
}

func NewModuleLogger(id ModuleID) *Logger {
	core := zapcore.NewCore(newEncoder(), sink, moduleLevel{id: id})
	return &Logger{id: id, s: zap.New(core).Named(id.String()).Sugar()}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }

// Crit logs at error level and then terminates the process. Reserved for
// unrecoverable initialization failures.
func (l *Logger) Crit(msg string, kv ...interface{}) {
	l.s.Errorw(msg, kv...)
	_ = l.s.Sync()
	os.Exit(1)
}

// Sync flushes buffered log entries; call during graceful shutdown.
func Sync() {
	_ = sink.Sync()
}
