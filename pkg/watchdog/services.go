package watchdog

import (
	"context"
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/supervisor"

	"github.com/thejerf/suture/v4"
)

// TreeOptions tunes restart behavior of the service tree.
type TreeOptions struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeOptions() TreeOptions {
	return TreeOptions{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

func newServiceTree(name string, options TreeOptions, logger logging.Logger) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook:        eventHook(logger),
		FailureThreshold: options.FailureThreshold,
		FailureDecay:     options.FailureDecay,
		FailureBackoff:   options.FailureBackoff,
		Timeout:          options.ShutdownTimeout,
	})
}

func eventHook(logger logging.Logger) suture.EventHook {
	return func(event suture.Event) {
		switch event.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeStopTimeout:
			logger.Errorf("Service tree: %s", event)
		case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
			logger.Warnf("Service tree: %s", event)
		default:
			logger.Infof("Service tree: %s", event)
		}
	}
}

// supervisorService runs every monitor for as long as the service is served.
type supervisorService struct {
	supervisor *supervisor.Supervisor
	logger     logging.Logger
}

func (s *supervisorService) Serve(ctx context.Context) error {
	if err := s.supervisor.StartAll(ctx); err != nil {
		s.logger.Errorf("Failed to start monitors: %v", err)
		return err
	}
	<-ctx.Done()
	s.supervisor.StopAll()
	return ctx.Err()
}

func (s *supervisorService) String() string {
	return "monitor-supervisor"
}
