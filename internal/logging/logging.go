// Package logging builds the two-sink zap logger used across looter.
//
// Every call site picks its destinations explicitly with To: progress chatter
// such as the loop countdown goes to the console only, claim outcomes go to
// both the console and the log file.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink is a set of log destinations.
type Sink uint8

const (
	Console Sink = 1 << iota // human-readable stdout
	File                     // JSON lines in the log file

	Both = Console | File
)

// Options configures New.
type Options struct {
	FilePath string    // empty disables the file sink
	Debug    bool      // lower the level to debug on both sinks
	Console  io.Writer // defaults to os.Stdout
}

// Logger routes entries to the sinks selected per call.
type Logger struct {
	routes map[Sink]*zap.Logger
	closer io.Closer
}

// New opens the log file (append mode) and builds the console and file cores.
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	out := opts.Console
	if out == nil {
		out = os.Stdout
	}
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	consoleCfg.EncodeCaller = nil
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(zapcore.AddSync(out)), level)

	var file zapcore.Core
	var closer io.Closer
	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", opts.FilePath, err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		file = zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.Lock(zapcore.AddSync(f)), level)
		closer = f
	}

	l := NewFromCores(console, file)
	l.closer = closer
	return l, nil
}

// NewFromCores assembles a Logger from prebuilt cores. A nil core drops the
// entries routed to it.
func NewFromCores(console, file zapcore.Core) *Logger {
	pick := func(s Sink) *zap.Logger {
		var cores []zapcore.Core
		if s&Console != 0 && console != nil {
			cores = append(cores, console)
		}
		if s&File != 0 && file != nil {
			cores = append(cores, file)
		}
		if len(cores) == 0 {
			return zap.NewNop()
		}
		return zap.New(zapcore.NewTee(cores...))
	}
	return &Logger{
		routes: map[Sink]*zap.Logger{
			Console: pick(Console),
			File:    pick(File),
			Both:    pick(Both),
		},
	}
}

// Wrap sends every route to z. Tests use it with an observer core.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{routes: map[Sink]*zap.Logger{Console: z, File: z, Both: z}}
}

// Nop discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// To returns the zap logger writing to exactly the sinks in s.
func (l *Logger) To(s Sink) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	if z, ok := l.routes[s]; ok {
		return z
	}
	return zap.NewNop()
}

// With returns a Logger whose routes all carry fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	if l == nil {
		return Nop()
	}
	routes := make(map[Sink]*zap.Logger, len(l.routes))
	for s, z := range l.routes {
		routes[s] = z.With(fields...)
	}
	return &Logger{routes: routes, closer: l.closer}
}

// Sync flushes buffered entries and closes the log file.
func (l *Logger) Sync() error {
	if l == nil {
		return nil
	}
	_ = l.To(Both).Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
