package control

import (
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/monitor"
	"github.com/core-tools/hsu-watchdog/pkg/target"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthRecorder publishes each target's last observed status through the
// standard gRPC health service, one service name per target identity.
// The empty service name reports the watchdog itself.
type HealthRecorder struct {
	server *health.Server
}

func NewHealthRecorder() *HealthRecorder {
	return &HealthRecorder{server: health.NewServer()}
}

func (r *HealthRecorder) Register(grpcServerRegistrar grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(grpcServerRegistrar, r.server)
}

// Resume marks every known service as serving again after a Shutdown.
func (r *HealthRecorder) Resume() {
	r.server.Resume()
}

// Shutdown reports every service as not serving and ignores later updates until Resume.
func (r *HealthRecorder) Shutdown() {
	r.server.Shutdown()
}

func (r *HealthRecorder) ObserveCheck(id target.ID, status target.Status, duration time.Duration, err error) {
	serving := healthpb.HealthCheckResponse_NOT_SERVING
	if err == nil && status == target.StatusRunning {
		serving = healthpb.HealthCheckResponse_SERVING
	}
	r.server.SetServingStatus(id.String(), serving)
}

// ObserveRestart leaves the status to the next check.
func (r *HealthRecorder) ObserveRestart(id target.ID, action monitor.Action, duration time.Duration) {}

func (r *HealthRecorder) ObservePhase(id target.ID, phase monitor.Phase) {
	if phase == monitor.PhaseStopped {
		r.server.SetServingStatus(id.String(), healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
	}
}
