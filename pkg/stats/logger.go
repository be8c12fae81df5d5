// Package stats is the ambient reporting stack (C10, spec §6/§7): a
// zerolog-backed logger, Prometheus metrics the fuzzer itself produces,
// a console progress reporter, and chart.json interval persistence.
package stats

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is the logger's minimum severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format selects the logger's encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LoggerConfig configures a Logger.
type LoggerConfig struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger wraps zerolog with the handful of leveled calls gradfuzz needs.
type Logger struct {
	z zerolog.Logger
}

// NewLogger constructs a Logger from cfg.
func NewLogger(cfg LoggerConfig) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(out).With().Timestamp().Logger()
	switch cfg.Level {
	case LevelDebug:
		z = z.Level(zerolog.DebugLevel)
	case LevelWarn:
		z = z.Level(zerolog.WarnLevel)
	case LevelError:
		z = z.Level(zerolog.ErrorLevel)
	default:
		z = z.Level(zerolog.InfoLevel)
	}
	return &Logger{z: z}
}

func fields(ev *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}

func (l *Logger) Debug(msg string, kv ...interface{}) { fields(l.z.Debug(), kv).Msg(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { fields(l.z.Info(), kv).Msg(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { fields(l.z.Warn(), kv).Msg(msg) }
func (l *Logger) Error(msg string, kv ...interface{}) { fields(l.z.Error(), kv).Msg(msg) }

// package-level convenience logger, the one intentional exception to
// "pass shared state by handle" (spec §9 design notes, SPEC_FULL.md §5):
// used only by call sites with no Logger to thread through, such as
// package init failures before a run's Logger exists.
var std = NewLogger(LoggerConfig{Level: LevelInfo, Format: FormatText})

func Default() *Logger { return std }
