package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"cam2web/internal/jpegenc"
	"cam2web/internal/xerror"
	"cam2web/internal/ximage"
)

// Engine drives a Source, keeps the latest received frame available for
// on-demand JPEG encoding, and fans every frame out to a chain of external
// listeners, per spec.md §4.1 and §5's two-mutex latest-frame contract.
type Engine struct {
	source Source
	logger *zap.Logger
	chain  *ListenerChain

	encoder *jpegenc.Encoder

	imageMu sync.Mutex
	image   *ximage.Image

	jpegMu  sync.Mutex
	jpeg    []byte
	jpegLen int
	jpegGen uint64 // generation of the raw image the cached jpeg was built from
	imageGen uint64

	framesReceived uint32
}

// NewEngine wires source to a fresh Engine. The engine installs itself as
// source's listener, so callers add their own listeners via AddListener
// rather than calling source.SetListener directly.
func NewEngine(source Source, quality int, faster bool, logger *zap.Logger) *Engine {
	e := &Engine{
		source:  source,
		logger:  logger,
		chain:   NewListenerChain(),
		encoder: jpegenc.NewEncoder(quality, faster),
	}
	source.SetListener(e)
	return e
}

// AddListener registers listener to receive every frame and error this
// engine's source produces from now on.
func (e *Engine) AddListener(listener Listener) {
	e.chain.Add(listener)
}

// RemoveListener undoes AddListener.
func (e *Engine) RemoveListener(listener Listener) {
	e.chain.Remove(listener)
}

// Start starts the underlying source.
func (e *Engine) Start() error {
	return e.source.Start()
}

// SignalToStop asks the underlying source to stop without blocking.
func (e *Engine) SignalToStop() {
	e.source.SignalToStop()
}

// WaitForStop blocks until the underlying source has stopped.
func (e *Engine) WaitForStop() {
	e.source.WaitForStop()
}

// IsRunning reports whether the underlying source is running.
func (e *Engine) IsRunning() bool {
	return e.source.IsRunning()
}

// FramesReceived returns the number of frames this engine has received from
// its source, independent of whatever count the source itself tracks.
func (e *Engine) FramesReceived() uint32 {
	return atomic.LoadUint32(&e.framesReceived)
}

// Capabilities reports the underlying source's capabilities.
func (e *Engine) Capabilities() Capabilities {
	return e.source.Capabilities()
}

// OnNewImage implements Listener: it is the engine's own sink for its
// source's frames. It updates the latest-frame cell and fans the frame out
// to every registered listener, in that order, so listeners always see an
// engine whose EncodeLatest/GetLatest already reflect the new frame.
func (e *Engine) OnNewImage(img *ximage.Image) {
	atomic.AddUint32(&e.framesReceived, 1)

	e.imageMu.Lock()
	img.CopyOrClone(&e.image)
	e.imageGen++
	e.imageMu.Unlock()

	e.chain.OnNewImage(img)
}

// OnError implements Listener, forwarding to every registered listener.
func (e *Engine) OnError(msg string, fatal bool) {
	if e.logger != nil {
		e.logger.Error("capture source error", zap.String("message", msg), zap.Bool("fatal", fatal))
	}
	e.chain.OnError(msg, fatal)
}

// GetLatest returns a fresh owned clone of the most recently received raw
// frame, or nil if no frame has arrived yet.
func (e *Engine) GetLatest() *ximage.Image {
	e.imageMu.Lock()
	defer e.imageMu.Unlock()
	if e.image == nil {
		return nil
	}
	var clone *ximage.Image
	e.image.CopyOrClone(&clone)
	return clone
}

// EncodeLatest fills buf with a JPEG encoding of the most recently received
// frame, reusing a cached encode when the frame has not changed since the
// last call (spec.md §4.1's "JPEG-preference" contract: a source that
// already produces JPEG is memcpy'd, never re-encoded). It returns the
// number of valid bytes written into *buf.
func (e *Engine) EncodeLatest(buf *[]byte) (int, error) {
	e.imageMu.Lock()
	img := e.image
	gen := e.imageGen
	e.imageMu.Unlock()

	if img == nil {
		return 0, fmt.Errorf("no frame received yet: %w", xerror.Failed)
	}

	e.jpegMu.Lock()
	defer e.jpegMu.Unlock()

	if gen == e.jpegGen && e.jpeg != nil {
		*buf = append((*buf)[:0], e.jpeg[:e.jpegLen]...)
		return e.jpegLen, nil
	}

	n, err := e.encoder.EncodeOrCopy(img, &e.jpeg)
	if err != nil {
		return 0, err
	}
	e.jpegLen = n
	e.jpegGen = gen

	*buf = append((*buf)[:0], e.jpeg[:n]...)
	return n, nil
}
