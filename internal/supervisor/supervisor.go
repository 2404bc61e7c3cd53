// Package supervisor implements spec.md's "Auto-start supervisor" module:
// it starts capture on launch, restarts it on a wake signal, and persists
// the property surface on a timer, mirroring the teacher's
// Application.startCamerasAsync/Stop lifecycle in main.go.
package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cam2web/internal/propsurface"
)

// Capture is the subset of capture.Engine the supervisor drives.
type Capture interface {
	Start() error
	SignalToStop()
	WaitForStop()
	IsRunning() bool
}

// Supervisor owns a Capture backend and a property surface, restarting the
// former on wake signals and persisting the latter on a ticker.
type Supervisor struct {
	capture Capture
	surface propsurface.Surface
	logger  *zap.Logger

	configPath     string
	persistNames   []string
	persistEvery   time.Duration

	// Wake is the Go analogue of spec.md's "system wake events": fed by
	// whatever the caller wires up (a SIGCONT/SIGUSR1 handler in this
	// repo's main.go, a power daemon elsewhere). A send on this channel
	// tells Run to restart capture if it isn't already running.
	Wake chan struct{}
}

// New builds a Supervisor. persistEvery of zero disables periodic
// persistence (Run still persists once on shutdown).
func New(capture Capture, surface propsurface.Surface, configPath string, persistNames []string, persistEvery time.Duration, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		capture:      capture,
		surface:      surface,
		logger:       logger,
		configPath:   configPath,
		persistNames: persistNames,
		persistEvery: persistEvery,
		Wake:         make(chan struct{}, 1),
	}
}

// Run starts capture, then blocks servicing wake signals and periodic
// persistence until ctx is cancelled, at which point it stops capture and
// persists the surface one final time before returning.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.startIfNeeded(); err != nil {
		return err
	}

	var tickC <-chan time.Time
	if s.persistEvery > 0 {
		ticker := time.NewTicker(s.persistEvery)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			s.capture.SignalToStop()
			s.capture.WaitForStop()
			s.persist()
			return nil

		case <-s.Wake:
			if err := s.startIfNeeded(); err != nil {
				s.log("supervisor failed to restart capture on wake", err)
			}

		case <-tickC:
			s.persist()
		}
	}
}

func (s *Supervisor) startIfNeeded() error {
	if s.capture.IsRunning() {
		return nil
	}
	return s.capture.Start()
}

func (s *Supervisor) persist() {
	if s.configPath == "" {
		return
	}
	if err := propsurface.SaveToFile(s.configPath, s.surface, s.persistNames); err != nil {
		s.log("supervisor failed to persist configuration", err)
	}
}

func (s *Supervisor) log(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, zap.Error(err))
	}
}
