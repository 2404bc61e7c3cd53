package webserver

import (
	"fmt"

	"go.uber.org/zap"

	"cam2web/internal/propsurface"
	"cam2web/internal/xerror"
)

// Controllable is the subset of capture.Engine/Source the admin surface
// needs to report and flip the "running" property, spec.md §6's
// `/status (admin) GET/POST {running: 0|1}`.
type Controllable interface {
	IsRunning() bool
	Start() error
	SignalToStop()
}

// runningSurface adapts a Controllable to propsurface.Surface's single
// "running" property, so the existing Information/Configurator handlers
// serve the admin endpoint without a bespoke request format.
type runningSurface struct {
	target Controllable
}

func (s *runningSurface) Get(name string) (string, error) {
	if name != "running" {
		return "", fmt.Errorf("property %q: %w", name, xerror.UnknownProperty)
	}
	if s.target.IsRunning() {
		return "1", nil
	}
	return "0", nil
}

func (s *runningSurface) Set(name, value string) error {
	if name != "running" {
		return fmt.Errorf("property %q: %w", name, xerror.UnknownProperty)
	}
	switch value {
	case "1":
		return s.target.Start()
	case "0":
		s.target.SignalToStop()
		return nil
	default:
		return fmt.Errorf("property %q value %q: %w", name, value, xerror.InvalidPropertyValue)
	}
}

func (s *runningSurface) EnumerateAll() map[string]string {
	v, _ := s.Get("running")
	return map[string]string{"running": v}
}

// NewAdminServer builds the second *Server instance spec.md's "Admin
// surface" describes: a separate bind address exposing GET/POST /status
// over the target's running state, gated to the Admin group regardless of
// the camera server's configured viewer/configurator groups.
func NewAdminServer(addr string, target Controllable, logger *zap.Logger) *Server {
	s := NewServer(addr, "admin", Basic, logger)
	surface := &runningSurface{target: target}

	s.AddHandler("/status", &ConfiguratorHandler{Surface: surface}, Admin, false)

	return s
}

// NewStatusSurface builds a MapSurface holding an instance_id and a version
// property. Both accept Set like any other MapSurface property.
func NewStatusSurface(instanceID, version string) *propsurface.MapSurface {
	return propsurface.NewMapSurface(
		propsurface.Property{Name: "instance_id", Value: instanceID},
		propsurface.Property{Name: "version", Value: version},
	)
}
