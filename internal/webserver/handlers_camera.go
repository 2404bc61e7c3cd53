package webserver

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// FrameSource is the subset of capture.Engine the camera handlers need: a
// way to pull the latest frame as JPEG bytes on demand.
type FrameSource interface {
	EncodeLatest(buf *[]byte) (int, error)
}

// SnapshotHandler serves a single JPEG frame per request, spec.md §4.4.
type SnapshotHandler struct {
	Source FrameSource
}

// Handle implements Handler.
func (h *SnapshotHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	var buf []byte
	n, err := h.Source.EncodeLatest(&buf)
	if err != nil {
		resp.SendError(http.StatusServiceUnavailable, "no frame available")
		return
	}
	resp.Header().Set("Content-Type", "image/jpeg")
	resp.Header().Set("Content-Length", fmt.Sprintf("%d", n))
	resp.WriteHeader(http.StatusOK)
	resp.Send(buf[:n])
}

// MJPEGHandler streams multipart/x-mixed-replace frames at a fixed
// interval, spec.md §4.5, driven by the Response.SetTimer/on_timer
// mechanism of spec.md §9's "cooperative callback scheduling" rather than a
// blocking loop, so the state machine matches the original's.
type MJPEGHandler struct {
	Source   FrameSource
	Interval time.Duration
	Logger   *zap.Logger

	boundary string
}

const mjpegBoundary = "cam2web-boundary"

// Handle implements Handler.
func (h *MJPEGHandler) Handle(resp *Response, req *http.Request, group UserGroup) {
	resp.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mjpegBoundary)
	resp.Header().Set("Cache-Control", "no-cache")
	resp.WriteHeader(http.StatusOK)

	interval := h.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	var onTimer func()
	onTimer = func() {
		select {
		case <-resp.Done():
			return
		default:
		}

		var buf []byte
		n, err := h.Source.EncodeLatest(&buf)
		if err != nil {
			resp.SetTimer(interval, onTimer)
			return
		}

		if resp.ToSendBacklogLen() >= 2*n {
			if h.Logger != nil {
				h.Logger.Debug("mjpeg client too slow, skipping frame")
			}
			resp.SetTimer(interval, onTimer)
			return
		}

		if _, err := resp.SendChunk(mjpegBoundary, "image/jpeg", buf[:n]); err != nil {
			if h.Logger != nil {
				h.Logger.Debug("mjpeg client disconnected", zap.Error(err))
			}
			resp.CloseConnection()
			return
		}
		resp.SetTimer(interval, onTimer)
	}

	go onTimer()

	<-resp.Done()
}
