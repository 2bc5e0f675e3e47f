package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the ordered verbosity scale used by targets and the process-wide threshold.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInformation
	LevelWarning
	LevelError
	LevelCritical
)

var levelNames = [...]string{
	LevelTrace:       "Trace",
	LevelDebug:       "Debug",
	LevelInformation: "Information",
	LevelWarning:     "Warning",
	LevelError:       "Error",
	LevelCritical:    "Critical",
}

// TraceZapLevel sits one step below zap's debug level.
const TraceZapLevel = zapcore.DebugLevel - 1

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

func (l Level) Valid() bool {
	return l >= LevelTrace && l <= LevelCritical
}

// ParseLevel accepts the canonical names case-insensitively, plus the short zap-style aliases.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace", "verbose":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "information", "info":
		return LevelInformation, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical", "fatal":
		return LevelCritical, nil
	default:
		return LevelInformation, fmt.Errorf("invalid log level: %q", s)
	}
}

// MarshalText lets levels round-trip through YAML and JSON as names.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid log level: %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ZapLevel maps the level onto zap's scale. Critical maps to DPanic, which only panics
// in development loggers; the loggers built here never enable development mode.
func (l Level) ZapLevel() zapcore.Level {
	switch l {
	case LevelTrace:
		return TraceZapLevel
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInformation:
		return zapcore.InfoLevel
	case LevelWarning:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelCritical:
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func FromZapLevel(level zapcore.Level) Level {
	switch {
	case level <= TraceZapLevel:
		return LevelTrace
	case level == zapcore.DebugLevel:
		return LevelDebug
	case level == zapcore.InfoLevel:
		return LevelInformation
	case level == zapcore.WarnLevel:
		return LevelWarning
	case level == zapcore.ErrorLevel:
		return LevelError
	default:
		return LevelCritical
	}
}

// LevelController is the process-wide verbosity threshold consulted by every log call.
// Only the supervisor's control-identity applier may call SetLevel.
type LevelController interface {
	Level() Level
	Enabled(level Level) bool
	SetLevel(level Level)
	Enabler() zapcore.LevelEnabler
}

type atomicLevelController struct {
	atomic zap.AtomicLevel
}

func NewLevelController(initial Level) LevelController {
	return &atomicLevelController{
		atomic: zap.NewAtomicLevelAt(initial.ZapLevel()),
	}
}

func (c *atomicLevelController) Level() Level {
	return FromZapLevel(c.atomic.Level())
}

func (c *atomicLevelController) Enabled(level Level) bool {
	return c.atomic.Enabled(level.ZapLevel())
}

func (c *atomicLevelController) SetLevel(level Level) {
	c.atomic.SetLevel(level.ZapLevel())
}

func (c *atomicLevelController) Enabler() zapcore.LevelEnabler {
	return c.atomic
}
