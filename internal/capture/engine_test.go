package capture

import (
	"sync"
	"testing"

	"cam2web/internal/ximage"
)

type fakeSource struct {
	mu       sync.Mutex
	listener Listener
	running  bool
	caps     Capabilities
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	return nil
}

func (s *fakeSource) SignalToStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *fakeSource) WaitForStop() {}

func (s *fakeSource) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeSource) FramesReceived() uint32 { return 0 }

func (s *fakeSource) Capabilities() Capabilities { return s.caps }

func (s *fakeSource) SetListener(l Listener) Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.listener
	s.listener = l
	return prev
}

func (s *fakeSource) deliver(img *ximage.Image) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	l.OnNewImage(img)
}

func (s *fakeSource) fail(msg string, fatal bool) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	l.OnError(msg, fatal)
}

type recordingListener struct {
	mu     sync.Mutex
	images int
	errors int
	fatal  bool
}

func (r *recordingListener) OnNewImage(img *ximage.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images++
}

func (r *recordingListener) OnError(msg string, fatal bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
	r.fatal = fatal
}

func solidGray(width, height int, value byte) *ximage.Image {
	img, err := ximage.NewOwned(width, height, ximage.Gray8)
	if err != nil {
		panic(err)
	}
	for i := range img.Pix {
		img.Pix[i] = value
	}
	return img
}

func TestEngineFansOutToRegisteredListeners(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)

	l1 := &recordingListener{}
	l2 := &recordingListener{}
	e.AddListener(l1)
	e.AddListener(l2)

	src.deliver(solidGray(4, 4, 0x40))

	if l1.images != 1 || l2.images != 1 {
		t.Errorf("images = %d, %d, want 1, 1", l1.images, l2.images)
	}
	if got := e.FramesReceived(); got != 1 {
		t.Errorf("FramesReceived() = %d, want 1", got)
	}
}

func TestEngineRemoveListenerStopsDelivery(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)

	l := &recordingListener{}
	e.AddListener(l)
	src.deliver(solidGray(2, 2, 1))
	e.RemoveListener(l)
	src.deliver(solidGray(2, 2, 1))

	if l.images != 1 {
		t.Errorf("images = %d, want 1", l.images)
	}
}

func TestEngineOnErrorForwardsToListeners(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)

	l := &recordingListener{}
	e.AddListener(l)
	src.fail("device unplugged", true)

	if l.errors != 1 || !l.fatal {
		t.Errorf("errors = %d, fatal = %v, want 1, true", l.errors, l.fatal)
	}
}

func TestEngineEncodeLatestBeforeAnyFrameFails(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)

	var buf []byte
	if _, err := e.EncodeLatest(&buf); err == nil {
		t.Error("EncodeLatest before any frame succeeded, want error")
	}
}

func TestEngineEncodeLatestProducesJPEGAfterFrame(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)
	src.deliver(solidGray(8, 8, 0x80))

	var buf []byte
	n, err := e.EncodeLatest(&buf)
	if err != nil {
		t.Fatalf("EncodeLatest: %v", err)
	}
	if n == 0 || n != len(buf) {
		t.Errorf("EncodeLatest returned n=%d, len(buf)=%d", n, len(buf))
	}
	if buf[0] != 0xFF || buf[1] != 0xD8 {
		t.Errorf("buf does not start with a JPEG SOI marker: % x", buf[:2])
	}
}

func TestEngineEncodeLatestReusesCacheUntilNewFrame(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)
	src.deliver(solidGray(8, 8, 0x10))

	var first, second []byte
	if _, err := e.EncodeLatest(&first); err != nil {
		t.Fatalf("EncodeLatest: %v", err)
	}
	if _, err := e.EncodeLatest(&second); err != nil {
		t.Fatalf("EncodeLatest: %v", err)
	}
	if string(first) != string(second) {
		t.Error("EncodeLatest produced different bytes for the same frame")
	}

	src.deliver(solidGray(8, 8, 0xF0))
	var third []byte
	if _, err := e.EncodeLatest(&third); err != nil {
		t.Fatalf("EncodeLatest: %v", err)
	}
	if string(third) == string(first) {
		t.Error("EncodeLatest did not pick up the new frame")
	}
}

func TestEngineGetLatestReturnsIndependentClone(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)

	original := solidGray(4, 4, 0x05)
	src.deliver(original)

	clone := e.GetLatest()
	if clone == nil {
		t.Fatal("GetLatest returned nil after a frame was delivered")
	}
	clone.Pix[0] = 0xFF
	if original.Pix[0] == 0xFF {
		t.Error("mutating the clone mutated the delivered image")
	}
}

func TestEngineStartStopDelegatesToSource(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, 80, false, nil)

	if e.IsRunning() {
		t.Error("IsRunning() = true before Start")
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !e.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	e.SignalToStop()
	if e.IsRunning() {
		t.Error("IsRunning() = true after SignalToStop")
	}
}
