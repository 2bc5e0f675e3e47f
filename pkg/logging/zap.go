package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TargetKey is the structured field holding the target identity.
const TargetKey = "target"

// ZapConfig defines the log sink
type ZapConfig struct {
	Format     string `yaml:"format"` // "json", "console"
	Output     string `yaml:"output"` // "stdout", "stderr", file path
	Caller     bool   `yaml:"caller"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"` // file output rotation
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

func DefaultZapConfig() ZapConfig {
	return ZapConfig{
		Format:     "json",
		Output:     "stdout",
		Caller:     false,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

type zapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a logger whose threshold is the controller's atomic level.
func NewZapLogger(config ZapConfig, levels LevelController) (Logger, error) {
	encoder := newEncoder(config.Format)

	writeSyncer, err := newWriteSyncer(config)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, writeSyncer, levels.Enabler())

	opts := []zap.Option{}
	if config.Caller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}

	return &zapLogger{logger: zap.New(core, opts...)}, nil
}

// NewZapLoggerFromCore wraps an existing core; tests pass an observer core here.
func NewZapLoggerFromCore(core zapcore.Core) Logger {
	return &zapLogger{logger: zap.New(core)}
}

func NewNopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func (z *zapLogger) LogLevelf(level Level, format string, args ...interface{}) {
	z.logf(level, format, args...)
}

func (z *zapLogger) Tracef(format string, args ...interface{}) {
	z.logf(LevelTrace, format, args...)
}

func (z *zapLogger) Debugf(format string, args ...interface{}) {
	z.logf(LevelDebug, format, args...)
}

func (z *zapLogger) Infof(format string, args ...interface{}) {
	z.logf(LevelInformation, format, args...)
}

func (z *zapLogger) Warnf(format string, args ...interface{}) {
	z.logf(LevelWarning, format, args...)
}

func (z *zapLogger) Errorf(format string, args ...interface{}) {
	z.logf(LevelError, format, args...)
}

func (z *zapLogger) Criticalf(format string, args ...interface{}) {
	z.logf(LevelCritical, format, args...)
}

func (z *zapLogger) WithTarget(target string) Logger {
	return &zapLogger{logger: z.logger.With(zap.String(TargetKey, target))}
}

func (z *zapLogger) Sync() error {
	return z.logger.Sync()
}

func (z *zapLogger) logf(level Level, format string, args ...interface{}) {
	// Check consults the core's enabler before the message is formatted
	if ce := z.logger.Check(level.ZapLevel(), format); ce != nil {
		if len(args) > 0 {
			ce.Message = fmt.Sprintf(format, args...)
		}
		ce.Write()
	}
}

func newEncoder(format string) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = encodeLevel

	switch format {
	case "console":
		return zapcore.NewConsoleEncoder(encoderConfig)
	default: // "json" or anything else
		return zapcore.NewJSONEncoder(encoderConfig)
	}
}

func encodeLevel(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(FromZapLevel(level).String())
}

func newWriteSyncer(config ZapConfig) (zapcore.WriteSyncer, error) {
	switch config.Output {
	case "stdout", "":
		return zapcore.Lock(zapcore.AddSync(os.Stdout)), nil
	case "stderr":
		return zapcore.Lock(zapcore.AddSync(os.Stderr)), nil
	default:
		if config.MaxSizeMB < 0 || config.MaxBackups < 0 || config.MaxAgeDays < 0 {
			return nil, fmt.Errorf("invalid rotation settings for %s", config.Output)
		}
		rotator := &lumberjack.Logger{
			Filename:   config.Output,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
			LocalTime:  true,
		}
		return zapcore.AddSync(rotator), nil
	}
}
