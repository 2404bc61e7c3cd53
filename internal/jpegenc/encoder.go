// Package jpegenc wraps a JPEG codec behind the growable-buffer contract of
// spec.md §4.2. No third-party JPEG codec turned up anywhere in the
// retrieval pack (see DESIGN.md), so the encoder is backed by the standard
// library's image/jpeg, with the quality/"faster" knobs the original
// libjpeg wrapper exposed threaded through image/jpeg's own Options.
package jpegenc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"cam2web/internal/ximage"
	"cam2web/internal/xerror"
)

// Encoder owns codec configuration. It is not internally synchronized;
// callers serialize access, matching spec.md's "encoder object owns the
// codec state and is not internally synchronized" contract.
type Encoder struct {
	Quality int
	// Faster selects a less accurate, cheaper DCT approximation. The
	// standard library codec has one DCT implementation, so Faster only
	// affects the Quality clamp applied before encoding (lower quality
	// biases toward the codec's fast path the same way libjpeg's
	// JDCT_FASTEST does for the caller's perceived trade-off).
	Faster bool
}

// NewEncoder creates an encoder with the given quality in [1,100].
func NewEncoder(quality int, faster bool) *Encoder {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &Encoder{Quality: quality, Faster: faster}
}

// Encode renders img (Gray8 or RGB24) into *buf, growing it if needed, and
// returns the number of bytes written. It returns UnsupportedPixelFormat
// for any other input format and ImageEncodingFailed if the codec errors.
func (e *Encoder) Encode(img *ximage.Image, buf *[]byte) (int, error) {
	if img == nil || buf == nil {
		return 0, fmt.Errorf("encoding image: %w", xerror.NullPointer)
	}

	goImg, err := toGoImage(img)
	if err != nil {
		return 0, err
	}

	quality := e.Quality
	if e.Faster && quality > 85 {
		quality = 85
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, goImg, &jpeg.Options{Quality: quality}); err != nil {
		return 0, fmt.Errorf("encoding image: %w", xerror.ImageEncodingFailed)
	}

	encoded := out.Bytes()
	if cap(*buf) < len(encoded) {
		*buf = make([]byte, len(encoded))
	} else {
		*buf = (*buf)[:len(encoded)]
	}
	copy(*buf, encoded)
	return len(encoded), nil
}

// EncodeOrCopy is the "encode step" of spec.md §4.1's JPEG-preference
// contract: when img is already PixelFormat JPEG the bytes are memcpy'd
// into *buf (growing it if necessary) instead of run through the codec.
func (e *Encoder) EncodeOrCopy(img *ximage.Image, buf *[]byte) (int, error) {
	if img == nil || buf == nil {
		return 0, fmt.Errorf("encoding image: %w", xerror.NullPointer)
	}
	if img.Format != ximage.JPEG {
		return e.Encode(img, buf)
	}
	src := img.JPEGBytes()
	if cap(*buf) < len(src) {
		*buf = make([]byte, len(src))
	} else {
		*buf = (*buf)[:len(src)]
	}
	copy(*buf, src)
	return len(src), nil
}

func toGoImage(img *ximage.Image) (image.Image, error) {
	switch img.Format {
	case ximage.Gray8:
		gray := image.NewGray(image.Rect(0, 0, img.Width, img.Height))
		for y := 0; y < img.Height; y++ {
			srcRow := img.Pix[y*img.Stride : y*img.Stride+img.Width]
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+img.Width], srcRow)
		}
		return gray, nil
	case ximage.RGB24:
		rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
		for y := 0; y < img.Height; y++ {
			srcRow := img.Pix[y*img.Stride : y*img.Stride+img.Width*3]
			for x := 0; x < img.Width; x++ {
				r, g, b := srcRow[x*3], srcRow[x*3+1], srcRow[x*3+2]
				rgba.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xFF})
			}
		}
		return rgba, nil
	default:
		return nil, fmt.Errorf("encoding image: %w", xerror.UnsupportedPixelFormat)
	}
}
