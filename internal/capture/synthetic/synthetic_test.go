package synthetic

import (
	"sync"
	"testing"
	"time"

	"cam2web/internal/xerror"
	"cam2web/internal/ximage"
)

type countingListener struct {
	mu     sync.Mutex
	images int
}

func (c *countingListener) OnNewImage(img *ximage.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.images++
}

func (c *countingListener) OnError(msg string, fatal bool) {}

func (c *countingListener) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.images
}

func TestStartWithoutListenerFails(t *testing.T) {
	s := New(16, 16, 30, nil)
	if err := s.Start(); err == nil {
		t.Fatal("Start without a listener succeeded, want error")
	}
}

func TestStartProducesFramesAtConfiguredRate(t *testing.T) {
	s := New(16, 16, 100, nil) // 10ms period
	l := &countingListener{}
	s.SetListener(l)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	s.SignalToStop()
	s.WaitForStop()

	if l.count() < 3 {
		t.Errorf("images produced = %d, want at least 3", l.count())
	}
	if s.IsRunning() {
		t.Error("IsRunning() = true after WaitForStop")
	}
}

func TestDoubleStartFails(t *testing.T) {
	s := New(8, 8, 50, nil)
	l := &countingListener{}
	s.SetListener(l)

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		s.SignalToStop()
		s.WaitForStop()
	}()

	err := s.Start()
	if code, ok := xerror.As(err); !ok || code != xerror.Failed {
		t.Errorf("second Start() err = %v, want xerror.Failed", err)
	}
}

func TestCapabilitiesReportsConfiguredShape(t *testing.T) {
	s := New(320, 240, 15, nil)
	caps := s.Capabilities()
	if caps.Width != 320 || caps.Height != 240 || caps.FrameRate != 15 || caps.Format != ximage.RGB24 {
		t.Errorf("Capabilities() = %+v, unexpected", caps)
	}
}
