// Package watchdog assembles the configuration store, drivers, monitors and
// control surfaces described by a configuration file into one service tree.
package watchdog

import (
	"context"
	stderrors "errors"

	"github.com/core-tools/hsu-watchdog/pkg/api"
	"github.com/core-tools/hsu-watchdog/pkg/configstore"
	"github.com/core-tools/hsu-watchdog/pkg/control"
	"github.com/core-tools/hsu-watchdog/pkg/domain"
	"github.com/core-tools/hsu-watchdog/pkg/driver"
	"github.com/core-tools/hsu-watchdog/pkg/errors"
	"github.com/core-tools/hsu-watchdog/pkg/logging"
	"github.com/core-tools/hsu-watchdog/pkg/metrics"
	"github.com/core-tools/hsu-watchdog/pkg/monitor"
	"github.com/core-tools/hsu-watchdog/pkg/supervisor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thejerf/suture/v4"
)

// Dependencies replaces process-level collaborators; zero values select the defaults.
type Dependencies struct {
	Runner   driver.Runner
	Registry *prometheus.Registry
	Tree     TreeOptions
}

// Watchdog owns every long-running component built from one configuration.
type Watchdog struct {
	config     *Config
	store      *configstore.Store
	supervisor *supervisor.Supervisor
	metrics    *metrics.Metrics
	health     *control.HealthRecorder
	contract   domain.Contract
	httpServer *api.Server
	grpcServer control.Server
	watcher    *ConfigWatcher
	tree       *suture.Supervisor
	logger     logging.Logger
}

// New builds the watchdog from a validated configuration. configFile may be empty,
// which disables live reload.
func New(config *Config, configFile string, levels logging.LevelController, logger logging.Logger, deps Dependencies) (*Watchdog, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	if deps.Runner == nil {
		deps.Runner = driver.NewExecRunner(logger)
	}
	if deps.Tree == (TreeOptions{}) {
		deps.Tree = DefaultTreeOptions()
		deps.Tree.ShutdownTimeout = config.Watchdog.ShutdownTimeout
	}

	entries, err := StoreEntries(config)
	if err != nil {
		return nil, err
	}
	store, err := configstore.New(entries)
	if err != nil {
		return nil, err
	}

	drivers, err := CreateDrivers(config, deps.Runner, logger)
	if err != nil {
		return nil, err
	}

	w := &Watchdog{
		config:  config,
		store:   store,
		metrics: metrics.New(deps.Registry),
		health:  control.NewHealthRecorder(),
		logger:  logger,
	}
	w.metrics.ObserveEntries(store.Snapshot())

	options := config.Watchdog.SupervisorOptions()
	options.Proposals = w.metrics
	w.supervisor, err = supervisor.New(options, store, drivers, levels, logger,
		monitor.NewMultiRecorder(w.metrics, w.health))
	if err != nil {
		return nil, err
	}
	w.contract = supervisor.NewHandler(w.supervisor, logger)

	w.tree = newServiceTree("watchdog", deps.Tree, logger)
	w.tree.Add(&supervisorService{supervisor: w.supervisor, logger: logger})

	if *config.Watchdog.HTTP.Enabled {
		router := api.NewRouter(w.contract, w.metrics.Handler(), logger)
		w.httpServer, err = api.NewServer(api.ServerOptions{
			Address:         config.Watchdog.HTTP.Address,
			ShutdownTimeout: config.Watchdog.ShutdownTimeout,
		}, router, logger)
		if err != nil {
			return nil, err
		}
		w.tree.Add(w.httpServer)
	}

	if *config.Watchdog.GRPC.Enabled {
		w.grpcServer, err = control.NewServer(control.ServerOptions{
			Port:            config.Watchdog.GRPC.Port,
			ShutdownTimeout: config.Watchdog.ShutdownTimeout,
		}, logger)
		if err != nil {
			if w.httpServer != nil {
				w.httpServer.Close()
			}
			return nil, err
		}
		control.RegisterGRPCServerHandler(w.grpcServer.GRPC(), w.contract, logger)
		w.health.Register(w.grpcServer.GRPC())
		w.tree.Add(w.grpcServer)
	}

	if configFile != "" && *config.Watchdog.WatchConfig {
		w.watcher = NewConfigWatcher(configFile, config, w.supervisor, logger)
		w.tree.Add(w.watcher)
	}

	return w, nil
}

// Serve runs the service tree until ctx is cancelled.
func (w *Watchdog) Serve(ctx context.Context) error {
	w.logger.Infof("Watchdog starting, targets: %d", len(w.config.Targets))

	err := w.tree.Serve(ctx)
	w.health.Shutdown()

	if err != nil && !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewInternalError("service tree failed", err)
	}
	w.logger.Infof("Watchdog stopped")
	return nil
}

func (w *Watchdog) Supervisor() *supervisor.Supervisor {
	return w.supervisor
}

func (w *Watchdog) Contract() domain.Contract {
	return w.contract
}

// HTTPAddr is empty when the HTTP API is disabled.
func (w *Watchdog) HTTPAddr() string {
	if w.httpServer == nil {
		return ""
	}
	return w.httpServer.Addr()
}

// GRPCAddr is empty when the gRPC control service is disabled.
func (w *Watchdog) GRPCAddr() string {
	if w.grpcServer == nil {
		return ""
	}
	return w.grpcServer.Addr()
}
