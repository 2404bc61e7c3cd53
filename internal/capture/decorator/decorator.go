// Package decorator implements the frame decorator of spec.md §4.10: a
// capture.Listener that overlays a timestamp and/or camera title onto every
// frame it sees before forwarding it downstream. The text rendering is
// grounded on the label-drawing routine used for detection-box captions
// elsewhere in the retrieval pack: a font.Drawer over
// golang.org/x/image/font/basicfont.
package decorator

import (
	"image"
	"image/color"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"cam2web/internal/capture"
	"cam2web/internal/ximage"
)

// TimeFunc returns the current time; overridable in tests.
type TimeFunc func() time.Time

// Decorator wraps a downstream capture.Listener, drawing a configurable
// overlay string onto every RGB24/Gray8 frame before forwarding it. JPEG
// frames pass through undecorated, since decorating them would require a
// decode/re-encode round trip the original never performs either. The
// timestamp and camera title overlays toggle independently, grounded on
// XVideoFrameDecorator's separate SetTimestampOverlay/SetCameraTitleOverlay
// setters rather than a single on/off switch.
type Decorator struct {
	mu sync.RWMutex

	title            string
	timestampOverlay bool
	titleOverlay     bool
	textColor        color.Color
	backgroundColor  color.Color

	now  TimeFunc
	next capture.Listener
}

// New wraps next, the listener that should receive decorated frames. Both
// overlays start disabled and the colors default to black-on-white, matching
// XVideoFrameDecorator's constructor.
func New(next capture.Listener) *Decorator {
	return &Decorator{
		next:            next,
		now:             time.Now,
		textColor:       color.Black,
		backgroundColor: color.White,
	}
}

// SetTitle sets the camera title overlayed when CameraTitleOverlay is
// enabled, per spec.md §4.10's "camera title" property.
func (d *Decorator) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

// SetTimestampOverlay toggles the "YY/MM/DD hh:mm:ss" timestamp overlay.
func (d *Decorator) SetTimestampOverlay(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timestampOverlay = enabled
}

// SetCameraTitleOverlay toggles the camera title overlay.
func (d *Decorator) SetCameraTitleOverlay(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.titleOverlay = enabled
}

// SetOverlayTextColor sets the foreground color the overlay text is drawn
// with.
func (d *Decorator) SetOverlayTextColor(c color.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.textColor = c
}

// SetOverlayBackgroundColor sets the color the overlay's background box is
// filled with.
func (d *Decorator) SetOverlayBackgroundColor(c color.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backgroundColor = c
}

// OnNewImage implements capture.Listener.
func (d *Decorator) OnNewImage(img *ximage.Image) {
	d.mu.RLock()
	label := d.overlayText()
	textColor := d.textColor
	backgroundColor := d.backgroundColor
	d.mu.RUnlock()

	if label == "" || img.Format == ximage.JPEG {
		d.next.OnNewImage(img)
		return
	}

	rgba := d.toRGBA(img)
	drawOverlay(rgba, label, textColor, backgroundColor)
	out := fromRGBA(rgba, img.Format)
	d.next.OnNewImage(out)
}

// OnError implements capture.Listener.
func (d *Decorator) OnError(msg string, fatal bool) {
	d.next.OnError(msg, fatal)
}

// overlayText composes the timestamp and camera title, in that order,
// joined by " :: " when both are enabled — matching
// XVideoFrameDecorator::OnNewImage's string assembly exactly, including its
// "YY/MM/DD hh:mm:ss" format and skipping the title when it's empty even if
// its overlay is enabled.
func (d *Decorator) overlayText() string {
	var overlay string
	if d.timestampOverlay {
		overlay = d.now().Format("06/01/02 15:04:05")
	}
	if d.titleOverlay && d.title != "" {
		if overlay != "" {
			overlay += " :: "
		}
		overlay += d.title
	}
	return overlay
}

func (d *Decorator) toRGBA(img *ximage.Image) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	switch img.Format {
	case ximage.Gray8:
		for y := 0; y < img.Height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+img.Width]
			for x, v := range row {
				rgba.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 0xFF})
			}
		}
	case ximage.RGB24:
		for y := 0; y < img.Height; y++ {
			row := img.Pix[y*img.Stride : y*img.Stride+img.Width*3]
			for x := 0; x < img.Width; x++ {
				rgba.SetRGBA(x, y, color.RGBA{R: row[x*3], G: row[x*3+1], B: row[x*3+2], A: 0xFF})
			}
		}
	}
	return rgba
}

// fromRGBA converts back to the original uncompressed format so downstream
// listeners keep seeing the format the source advertised.
func fromRGBA(rgba *image.RGBA, format ximage.PixelFormat) *ximage.Image {
	width, height := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	out, err := ximage.NewOwned(width, height, format)
	if err != nil {
		// format was already validated by the caller (Gray8/RGB24 only).
		panic(err)
	}
	switch format {
	case ximage.Gray8:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := rgba.At(x, y).RGBA()
				out.Pix[y*out.Stride+x] = byte(r >> 8)
			}
		}
	case ximage.RGB24:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				c := rgba.RGBAAt(x, y)
				i := y*out.Stride + x*3
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
			}
		}
	}
	return out
}

// drawOverlay paints label's background box and text at (0,0), per spec.md
// §4.10's "configured foreground and background colors at (0,0)".
func drawOverlay(img *image.RGBA, label string, textColor, backgroundColor color.Color) {
	const x, y = 0, 0
	textWidth := len(label) * 7
	bounds := img.Bounds()
	for dy := 0; dy < 16; dy++ {
		for dx := 0; dx < textWidth+2; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, backgroundColor)
			}
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 11)},
	}
	d.DrawString(label)
}
