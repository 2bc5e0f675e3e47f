package monitor

import (
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/target"
)

// Recorder receives monitoring outcomes for metrics and health reporting.
// Implementations must be safe for concurrent use by many monitors.
type Recorder interface {
	// ObserveCheck is called after every status query. err is nil on success.
	ObserveCheck(id target.ID, status target.Status, duration time.Duration, err error)

	// ObserveRestart is called once per restart attempt with its outcome.
	ObserveRestart(id target.ID, action Action, duration time.Duration)

	ObservePhase(id target.ID, phase Phase)
}

type nopRecorder struct{}

func NewNopRecorder() Recorder {
	return nopRecorder{}
}

func (nopRecorder) ObserveCheck(target.ID, target.Status, time.Duration, error) {}
func (nopRecorder) ObserveRestart(target.ID, Action, time.Duration)            {}
func (nopRecorder) ObservePhase(target.ID, Phase)                              {}

type multiRecorder []Recorder

// NewMultiRecorder fans out to every non-nil recorder in order.
func NewMultiRecorder(recorders ...Recorder) Recorder {
	result := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			result = append(result, r)
		}
	}
	return result
}

func (m multiRecorder) ObserveCheck(id target.ID, status target.Status, duration time.Duration, err error) {
	for _, r := range m {
		r.ObserveCheck(id, status, duration, err)
	}
}

func (m multiRecorder) ObserveRestart(id target.ID, action Action, duration time.Duration) {
	for _, r := range m {
		r.ObserveRestart(id, action, duration)
	}
}

func (m multiRecorder) ObservePhase(id target.ID, phase Phase) {
	for _, r := range m {
		r.ObservePhase(id, phase)
	}
}
