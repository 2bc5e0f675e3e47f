package configstore

import (
	"fmt"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// DefaultPollIntervalSeconds applies to service and pool targets with no explicit interval.
const DefaultPollIntervalSeconds = 10

// MaxPollIntervalSeconds is one year; longer intervals are rejected.
const MaxPollIntervalSeconds = 365 * 24 * 60 * 60

// TargetConfig is the desired monitoring configuration of one target.
// It is handled by value and replaced wholesale, never mutated in place.
type TargetConfig struct {
	Kind     target.Kind
	LogLevel logging.Level

	// PollIntervalSeconds is nil when the target is not auto-monitored.
	PollIntervalSeconds *int
}

// DefaultConfig returns the built-in default: Information verbosity, a 10 second interval
// for monitored kinds and no interval for the control identity.
func DefaultConfig(kind target.Kind) TargetConfig {
	config := TargetConfig{
		Kind:     kind,
		LogLevel: logging.LevelInformation,
	}
	if kind.Monitored() {
		config = config.WithInterval(DefaultPollIntervalSeconds)
	}
	return config
}

// Interval returns the poll interval and whether one is configured.
func (c TargetConfig) Interval() (time.Duration, bool) {
	if c.PollIntervalSeconds == nil {
		return 0, false
	}
	return time.Duration(*c.PollIntervalSeconds) * time.Second, true
}

// WithInterval returns a copy with the given interval in seconds.
func (c TargetConfig) WithInterval(seconds int) TargetConfig {
	c.PollIntervalSeconds = &seconds
	return c
}

// WithoutInterval returns a copy that disables auto-monitoring.
func (c TargetConfig) WithoutInterval() TargetConfig {
	c.PollIntervalSeconds = nil
	return c
}

// WithLogLevel returns a copy with the given verbosity.
func (c TargetConfig) WithLogLevel(level logging.Level) TargetConfig {
	c.LogLevel = level
	return c
}

// Equal compares values, including the interval behind the pointer.
func (c TargetConfig) Equal(other TargetConfig) bool {
	if c.Kind != other.Kind || c.LogLevel != other.LogLevel {
		return false
	}
	if c.PollIntervalSeconds == nil || other.PollIntervalSeconds == nil {
		return c.PollIntervalSeconds == nil && other.PollIntervalSeconds == nil
	}
	return *c.PollIntervalSeconds == *other.PollIntervalSeconds
}

func (c TargetConfig) String() string {
	interval := "none"
	if c.PollIntervalSeconds != nil {
		interval = fmt.Sprintf("%ds", *c.PollIntervalSeconds)
	}
	return fmt.Sprintf("kind: %s, log_level: %s, poll_interval: %s", c.Kind, c.LogLevel, interval)
}

// clone detaches the interval pointer from the caller's copy.
func (c TargetConfig) clone() TargetConfig {
	if c.PollIntervalSeconds != nil {
		return c.WithInterval(*c.PollIntervalSeconds)
	}
	return c
}

// ValidateTargetConfig checks a candidate against the identity it is proposed for.
func ValidateTargetConfig(id target.ID, candidate TargetConfig) error {
	if candidate.Kind != id.Kind {
		return errors.NewInvalidConfigError(
			fmt.Sprintf("target kind mismatch: proposed %q for %q", candidate.Kind, id.Kind),
			nil,
		).WithContext("target", id.String())
	}

	if !candidate.LogLevel.Valid() {
		return errors.NewInvalidConfigError(
			fmt.Sprintf("invalid log level: %d", int(candidate.LogLevel)),
			nil,
		).WithContext("target", id.String())
	}

	if candidate.PollIntervalSeconds != nil {
		if !id.Kind.Monitored() {
			return errors.NewInvalidConfigError("poll interval is not allowed for the control identity", nil).
				WithContext("target", id.String())
		}
		if *candidate.PollIntervalSeconds <= 0 {
			return errors.NewInvalidConfigError(
				fmt.Sprintf("poll interval must be a positive number of seconds, got %d", *candidate.PollIntervalSeconds),
				nil,
			).WithContext("target", id.String())
		}
		if *candidate.PollIntervalSeconds > MaxPollIntervalSeconds {
			return errors.NewInvalidConfigError(
				fmt.Sprintf("poll interval must not exceed %d seconds, got %d", MaxPollIntervalSeconds, *candidate.PollIntervalSeconds),
				nil,
			).WithContext("target", id.String())
		}
	}

	return nil
}
