package webserver

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"cam2web/internal/xevent"
)

// Response is the per-connection response surface of spec.md §4.3, named
// after and grounded on the original's MangooseWebResponse: callers write
// through Send/SendChunk/Printf, can register a one-shot timer callback
// with SetTimer the way the original's state machines drive MJPEG/event
// streaming, and CloseConnection ends the exchange from any goroutine. The
// finished/not-finished flag is spec.md §4's manual-reset event, shared
// with the capture side's shutdown signaling via package xevent.
type Response struct {
	w       http.ResponseWriter
	flusher http.Flusher
	backlog int64

	mu    sync.Mutex
	timer *time.Timer
	done  *xevent.Event
}

// NewResponse wraps w for one HTTP exchange.
func NewResponse(w http.ResponseWriter) *Response {
	flusher, _ := w.(http.Flusher)
	return &Response{w: w, flusher: flusher, done: xevent.New()}
}

// Done returns a channel closed once CloseConnection has been called,
// letting a handler's goroutine block until a timer-driven response (MJPEG)
// is finished.
func (r *Response) Done() <-chan struct{} {
	return r.done.C()
}

// Header exposes the underlying http.ResponseWriter's header map so
// handlers can set Content-Type etc. before the first Send/SendChunk.
func (r *Response) Header() http.Header {
	return r.w.Header()
}

// WriteHeader writes the HTTP status line, once, before any body bytes.
func (r *Response) WriteHeader(status int) {
	r.w.WriteHeader(status)
}

// Send writes data to the connection and flushes it immediately.
func (r *Response) Send(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	atomic.AddInt64(&r.backlog, int64(len(data)))
	n, err := r.w.Write(data)
	if r.flusher != nil {
		r.flusher.Flush()
	}
	atomic.AddInt64(&r.backlog, -int64(n))
	return n, err
}

// Printf formats and sends, mirroring the original's mg_printf-backed API.
func (r *Response) Printf(format string, args ...interface{}) (int, error) {
	return r.Send([]byte(fmt.Sprintf(format, args...)))
}

// SendChunk writes one multipart/x-mixed-replace part: the boundary line,
// a Content-Type/Content-Length header pair, and the payload, per spec.md
// §4.5.
func (r *Response) SendChunk(boundary, contentType string, data []byte) (int, error) {
	header := fmt.Sprintf("--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n", boundary, contentType, len(data))
	n1, err := r.Send([]byte(header))
	if err != nil {
		return n1, err
	}
	n2, err := r.Send(data)
	if err != nil {
		return n1 + n2, err
	}
	n3, err := r.Send([]byte("\r\n"))
	return n1 + n2 + n3, err
}

// SendError writes an HTTP error status with reason as the body.
func (r *Response) SendError(code int, reason string) {
	http.Error(r.w, reason, code)
}

// CloseConnection marks this exchange finished; safe to call more than
// once and from any goroutine (in particular, the timer callback and the
// request's context-cancellation watcher can both call it).
func (r *Response) CloseConnection() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()
	r.done.Signal()
}

// SetTimer schedules onTimer to run after d, implementing the
// set_timer/on_timer pair of spec.md §9's cooperative callback scheduling.
// Only one timer is live at a time; a later call replaces an earlier one.
func (r *Response) SetTimer(d time.Duration, onTimer func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(d, onTimer)
}

// ToSendBacklogLen approximates mongoose's send_mbuf.len: bytes handed to
// the connection but not yet flushed. net/http exposes no socket send
// queue, so this counts bytes between Write and Flush instead.
func (r *Response) ToSendBacklogLen() int {
	return int(atomic.LoadInt64(&r.backlog))
}
