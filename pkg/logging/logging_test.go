package logging

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input     string
		expected  Level
		shouldErr bool
	}{
		{"Trace", LevelTrace, false},
		{"debug", LevelDebug, false},
		{"Information", LevelInformation, false},
		{"info", LevelInformation, false},
		{"WARNING", LevelWarning, false},
		{"warn", LevelWarning, false},
		{"Error", LevelError, false},
		{"Critical", LevelCritical, false},
		{"verbose", LevelTrace, false},
		{"loud", LevelInformation, true},
		{"", LevelInformation, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.shouldErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevel_Ordering(t *testing.T) {
	assert.True(t, LevelTrace < LevelDebug)
	assert.True(t, LevelDebug < LevelInformation)
	assert.True(t, LevelInformation < LevelWarning)
	assert.True(t, LevelWarning < LevelError)
	assert.True(t, LevelError < LevelCritical)
	assert.False(t, Level(42).Valid())
	assert.Equal(t, "Level(42)", Level(42).String())
}

func TestLevel_ZapRoundTrip(t *testing.T) {
	for level := LevelTrace; level <= LevelCritical; level++ {
		assert.Equal(t, level, FromZapLevel(level.ZapLevel()), "level %s", level)
	}
}

func TestLevel_YAML(t *testing.T) {
	var doc struct {
		Level Level `yaml:"level"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("level: warning\n"), &doc))
	assert.Equal(t, LevelWarning, doc.Level)

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "level: Warning\n", string(out))

	assert.Error(t, yaml.Unmarshal([]byte("level: nope\n"), &doc))
}

func TestLevelController(t *testing.T) {
	controller := NewLevelController(LevelInformation)

	assert.Equal(t, LevelInformation, controller.Level())
	assert.True(t, controller.Enabled(LevelInformation))
	assert.True(t, controller.Enabled(LevelCritical))
	assert.False(t, controller.Enabled(LevelDebug))

	controller.SetLevel(LevelError)
	assert.Equal(t, LevelError, controller.Level())
	assert.False(t, controller.Enabled(LevelWarning))

	controller.SetLevel(LevelTrace)
	assert.True(t, controller.Enabled(LevelTrace))
}

func TestLevelController_ConcurrentAccess(t *testing.T) {
	controller := NewLevelController(LevelInformation)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			controller.SetLevel(Level(i % 6))
		}(i)
		go func() {
			defer wg.Done()
			assert.True(t, controller.Level().Valid())
		}()
	}
	wg.Wait()
}

func TestZapLogger_ThresholdFiltering(t *testing.T) {
	controller := NewLevelController(LevelInformation)
	core, logs := observer.New(controller.Enabler())
	logger := NewZapLoggerFromCore(core)

	logger.Debugf("hidden %d", 1)
	logger.Infof("shown %d", 2)

	controller.SetLevel(LevelError)
	logger.Infof("hidden after raise")
	logger.Warnf("hidden warning")
	logger.Errorf("error shown")
	logger.Criticalf("critical shown")

	controller.SetLevel(LevelTrace)
	logger.Tracef("trace shown")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, "shown 2", entries[0].Message)
	assert.Equal(t, "error shown", entries[1].Message)
	assert.Equal(t, zapcore.DPanicLevel, entries[2].Level)
	assert.Equal(t, TraceZapLevel, entries[3].Level)
}

func TestZapLogger_WithTarget(t *testing.T) {
	core, logs := observer.New(TraceZapLevel)
	logger := NewZapLoggerFromCore(core).WithTarget("service/MockService")

	logger.LogLevelf(LevelWarning, "Service %s is stopped", "MockService")

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "Service MockService is stopped", entries[0].Message)
	assert.Equal(t, "service/MockService", entries[0].ContextMap()[TargetKey])
}

func TestZapLogger_MessageWithoutArgsIsNotFormatted(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLoggerFromCore(core)

	logger.Infof("100% done")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "100% done", logs.AllUntimed()[0].Message)
}

func TestNewZapLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitoring-log.json")
	config := DefaultZapConfig()
	config.Output = path

	logger, err := NewZapLogger(config, NewLevelController(LevelInformation))
	require.NoError(t, err)

	logger.WithTarget("pool/mywebapipool").Infof("App Pool %s is running.", "mywebapipool")
	logger.Debugf("discarded")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"Information"`)
	assert.Contains(t, string(data), `"target":"pool/mywebapipool"`)
	assert.Contains(t, string(data), `"timestamp"`)
	assert.NotContains(t, string(data), "discarded")
}

func TestNewZapLogger_InvalidRotation(t *testing.T) {
	config := DefaultZapConfig()
	config.Output = filepath.Join(t.TempDir(), "x.json")
	config.MaxBackups = -1

	_, err := NewZapLogger(config, NewLevelController(LevelInformation))
	assert.Error(t, err)
}
