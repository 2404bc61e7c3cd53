package webserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeFrameSource struct {
	jpeg []byte
	err  error
}

func (f *fakeFrameSource) EncodeLatest(buf *[]byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	*buf = append((*buf)[:0], f.jpeg...)
	return len(f.jpeg), nil
}

func TestSnapshotHandlerServesJPEG(t *testing.T) {
	src := &fakeFrameSource{jpeg: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
	h := &SnapshotHandler{Source: src}

	rec := httptest.NewRecorder()
	resp := NewResponse(rec)
	req := httptest.NewRequest(http.MethodGet, "/camera/snapshot", nil)

	h.Handle(resp, req, Anyone)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != string(src.jpeg) {
		t.Error("body does not match the source's JPEG bytes")
	}
}

func TestSnapshotHandlerReturns503WhenNoFrame(t *testing.T) {
	src := &fakeFrameSource{err: fmt.Errorf("no frame")}
	h := &SnapshotHandler{Source: src}

	rec := httptest.NewRecorder()
	resp := NewResponse(rec)
	req := httptest.NewRequest(http.MethodGet, "/camera/snapshot", nil)

	h.Handle(resp, req, Anyone)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestMJPEGHandlerStreamsMultipleFrames(t *testing.T) {
	src := &fakeFrameSource{jpeg: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
	h := &MJPEGHandler{Source: src, Interval: 5 * time.Millisecond}

	rec := httptest.NewRecorder()
	resp := NewResponse(rec)
	req := httptest.NewRequest(http.MethodGet, "/camera/mjpeg", nil)

	done := make(chan struct{})
	go func() {
		h.Handle(resp, req, Anyone)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	resp.CloseConnection()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after CloseConnection")
	}

	body := rec.Body.String()
	if strings.Count(body, "--"+mjpegBoundary) < 2 {
		t.Errorf("expected at least 2 frames, body = %q", body)
	}
	if rec.Header().Get("Content-Type") != "multipart/x-mixed-replace; boundary="+mjpegBoundary {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestMJPEGHandlerSkipsSendWhenBacklogged(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	src := &fakeFrameSource{jpeg: jpeg}
	h := &MJPEGHandler{Source: src, Interval: 5 * time.Millisecond}

	rec := httptest.NewRecorder()
	resp := NewResponse(rec)
	req := httptest.NewRequest(http.MethodGet, "/camera/mjpeg", nil)

	done := make(chan struct{})
	go func() {
		h.Handle(resp, req, Anyone)
		close(done)
	}()

	// Simulate a slow client: once the backlog is at least twice the
	// frame size, further ticks must skip SendChunk but keep rescheduling.
	time.Sleep(10 * time.Millisecond)
	resp.backlog = int64(2 * len(jpeg))
	before := resp.ToSendBacklogLen()
	time.Sleep(20 * time.Millisecond)

	if resp.ToSendBacklogLen() != before {
		t.Errorf("backlog changed from %d to %d, want unchanged while backlogged", before, resp.ToSendBacklogLen())
	}

	resp.backlog = 0
	time.Sleep(20 * time.Millisecond)
	resp.CloseConnection()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handle did not return after CloseConnection")
	}

	if strings.Count(rec.Body.String(), "--"+mjpegBoundary) == 0 {
		t.Error("expected at least one frame once the backlog drained")
	}
}
