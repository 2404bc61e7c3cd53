// Package capture implements the capture engine of spec.md §4.1 and §5: it
// drives a camera backend, keeps the latest frame available in both raw and
// JPEG form, and fans received frames out to a chain of listeners.
package capture

import "cam2web/internal/ximage"

// Capabilities describes the resolution, pixel format and frame rate a
// Source produces, per spec.md §3 "Capabilities record".
type Capabilities struct {
	Width       int
	Height      int
	Format      ximage.PixelFormat
	FrameRate   float64
}

// Listener receives frames and error notifications from an Engine, per
// spec.md §4 "Video listener chain". Implementations must not retain the
// *ximage.Image passed to OnNewImage beyond the call when it is borrowed
// (see ximage.Image.IsOwned).
type Listener interface {
	OnNewImage(img *ximage.Image)
	OnError(msg string, fatal bool)
}

// Source is the capture backend interface of spec.md §6: everything this
// repository's capture engine needs from a camera, independent of how that
// camera actually produces frames.
type Source interface {
	Start() error
	SignalToStop()
	WaitForStop()
	IsRunning() bool
	FramesReceived() uint32
	Capabilities() Capabilities

	// SetListener installs listener as the source's single sink and
	// returns whatever listener was previously installed (nil the first
	// time), mirroring the original's ownership-handoff signature.
	SetListener(listener Listener) Listener
}
