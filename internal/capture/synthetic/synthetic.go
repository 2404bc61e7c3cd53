// Package synthetic implements the one concrete capture.Source this
// repository ships: a software test-pattern generator. spec.md's external
// interface table names real backends (V4L2, MMAL, DirectShow) only by the
// interfaces they consume/produce and explicitly scopes their drivers out;
// this generator exists so main.go has something real to serve frames from.
package synthetic

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"cam2web/internal/capture"
	"cam2web/internal/ximage"
	"cam2web/internal/xerror"
)

// Source generates a moving bar test pattern at a configured resolution and
// frame rate, implementing capture.Source.
type Source struct {
	width, height int
	frameRate     float64
	logger        *zap.Logger

	mu        sync.Mutex
	listener  capture.Listener
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	frame     uint32
}

// New creates a test-pattern source at width x height, producing frames at
// frameRate per second.
func New(width, height int, frameRate float64, logger *zap.Logger) *Source {
	return &Source{width: width, height: height, frameRate: frameRate, logger: logger}
}

// SetListener implements capture.Source.
func (s *Source) SetListener(listener capture.Listener) capture.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.listener
	s.listener = listener
	return prev
}

// Capabilities implements capture.Source.
func (s *Source) Capabilities() capture.Capabilities {
	return capture.Capabilities{Width: s.width, Height: s.height, Format: ximage.RGB24, FrameRate: s.frameRate}
}

// Start implements capture.Source, spawning the generator goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("starting synthetic source: %w", xerror.Failed)
	}
	if s.listener == nil {
		s.mu.Unlock()
		return fmt.Errorf("starting synthetic source with no listener: %w", xerror.NullPointer)
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stoppedCh = make(chan struct{})
	s.mu.Unlock()

	go s.run()
	return nil
}

// SignalToStop implements capture.Source.
func (s *Source) SignalToStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stopCh)
}

// WaitForStop implements capture.Source.
func (s *Source) WaitForStop() {
	s.mu.Lock()
	stopped := s.stoppedCh
	s.mu.Unlock()
	if stopped != nil {
		<-stopped
	}
}

// IsRunning implements capture.Source.
func (s *Source) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// FramesReceived implements capture.Source.
func (s *Source) FramesReceived() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *Source) run() {
	defer func() {
		s.mu.Lock()
		s.running = false
		close(s.stoppedCh)
		s.mu.Unlock()
	}()

	period := time.Second
	if s.frameRate > 0 {
		period = time.Duration(float64(time.Second) / s.frameRate)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.emitFrame()
		}
	}
}

func (s *Source) emitFrame() {
	s.mu.Lock()
	s.frame++
	frame := s.frame
	listener := s.listener
	s.mu.Unlock()

	if listener == nil {
		return
	}

	img, err := ximage.NewOwned(s.width, s.height, ximage.RGB24)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("synthetic source failed to allocate frame", zap.Error(err))
		}
		listener.OnError(err.Error(), false)
		return
	}
	paintBar(img, frame)
	listener.OnNewImage(img)
}

// paintBar fills img with a vertical color bar that sweeps horizontally
// across successive frames, purely so the image visibly changes over time.
func paintBar(img *ximage.Image, frame uint32) {
	barWidth := img.Width / 8
	if barWidth < 1 {
		barWidth = 1
	}
	barX := int(frame) % img.Width

	for y := 0; y < img.Height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Width*3]
		for x := 0; x < img.Width; x++ {
			on := (x-barX+img.Width)%img.Width < barWidth
			i := x * 3
			if on {
				row[i], row[i+1], row[i+2] = 0xFF, 0xFF, 0xFF
			} else {
				row[i], row[i+1], row[i+2] = 0x20, 0x20, 0x20
			}
		}
	}
}
