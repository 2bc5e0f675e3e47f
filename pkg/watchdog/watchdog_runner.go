package watchdog

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
)

type RunOptions struct {
	ConfigFile string
	// RunDuration stops the watchdog after the given time; zero runs until signalled.
	RunDuration time.Duration
}

// Run loads the configuration file, builds the process logger from its log section
// and serves until SIGINT/SIGTERM or the run duration elapses.
func Run(options RunOptions) error {
	config, err := LoadConfigFromFile(options.ConfigFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", options.ConfigFile)
	}
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", options.ConfigFile)
	}

	levels := logging.NewLevelController(logging.LevelInformation)
	logger, err := logging.NewZapLogger(config.Watchdog.Log, levels)
	if err != nil {
		return errors.NewIOError("failed to create logger", err)
	}
	defer logger.Sync()

	logger.Infof("Watchdog runner starting...")
	logger.Infof("Using CONFIGURATION FILE: %s", options.ConfigFile)

	w, err := New(config, options.ConfigFile, levels, logger, Dependencies{})
	if err != nil {
		logger.Errorf("Failed to create watchdog: %v", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if options.RunDuration > 0 {
		logger.Infof("Using RUN DURATION of %v", options.RunDuration)
		ctx, cancel = context.WithTimeout(ctx, options.RunDuration)
		defer cancel()
	}

	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig, os.Interrupt)
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}
	defer signal.Stop(sig)

	go func() {
		select {
		case receivedSignal := <-sig:
			logger.Infof("Watchdog runner received signal: %v", receivedSignal)
			cancel()
		case <-ctx.Done():
		}
	}()

	return w.Serve(ctx)
}

// ValidateConfigFile validates a configuration file without running it
func ValidateConfigFile(configFile string) (*Config, error) {
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return nil, errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}
	if err := ValidateConfig(config); err != nil {
		return nil, errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}
	return config, nil
}
