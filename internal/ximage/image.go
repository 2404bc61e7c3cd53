// Package ximage implements the typed pixel buffer spec.md §3 describes:
// fixed width/height/stride/format, an ownership flag distinguishing
// allocated memory from borrowed memory, and the copy helpers the capture
// engine uses to coalesce frames into its latest-frame slot.
package ximage

import (
	"fmt"

	"cam2web/internal/xerror"
)

// PixelFormat enumerates the buffer layouts the pipeline understands.
type PixelFormat int

const (
	Unknown PixelFormat = iota
	Gray8
	RGB24
	RGBA32
	JPEG
)

// BytesPerPixel returns the stride unit for uncompressed formats. JPEG has
// no fixed per-pixel size; callers must not call this for PixelFormat JPEG.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case Gray8:
		return 1
	case RGB24:
		return 3
	case RGBA32:
		return 4
	default:
		return 0
	}
}

// Image is a contiguous pixel buffer with stride, matching spec.md §3.
// For PixelFormat JPEG, Width stores the encoded byte length and Stride is
// the capacity of Pix, per the same section.
type Image struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Pix    []byte

	// owned is true when Pix was allocated by NewOwned and may be
	// reallocated/retained freely; false when Pix was handed in by Wrap and
	// must not be retained past the caller's stated lifetime.
	owned bool
}

// alignStride rounds a row's byte length up to a 4-byte boundary, per
// spec.md's row-padding invariant for uncompressed formats.
func alignStride(rowBytes int) int {
	return (rowBytes + 3) &^ 3
}

// NewOwned allocates a fresh, zeroed image buffer sized for width x height
// pixels of the given uncompressed format.
func NewOwned(width, height int, format PixelFormat) (*Image, error) {
	if format == JPEG || format == Unknown {
		return nil, fmt.Errorf("allocating owned image: %w", xerror.UnsupportedPixelFormat)
	}
	stride := alignStride(width * format.BytesPerPixel())
	return &Image{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    make([]byte, stride*height),
		owned:  true,
	}, nil
}

// WrapJPEG wraps an already-encoded JPEG byte slice without copying it.
// The caller must not mutate or free buf while the Image is in use.
func WrapJPEG(buf []byte) *Image {
	return &Image{
		Width:  len(buf),
		Height: 1,
		Stride: len(buf),
		Format: JPEG,
		Pix:    buf,
		owned:  false,
	}
}

// Wrap borrows caller-owned pixel bytes without copying. The returned Image
// must not outlive the memory backing pix, matching spec.md §9's
// "owned vs borrowed" discriminator.
func Wrap(width, height, stride int, format PixelFormat, pix []byte) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    pix,
		owned:  false,
	}
}

// IsOwned reports whether the Image holds memory it allocated itself.
func (img *Image) IsOwned() bool {
	return img.owned
}

// shapeMatches reports whether dst can receive src via CopyInto without a
// reallocation, per spec.md §3's matching rules.
func shapeMatches(dst, src *Image) bool {
	if dst.Format != src.Format || dst.Height != src.Height {
		return false
	}
	if src.Format == JPEG {
		return dst.Stride >= src.Stride
	}
	return dst.Width == src.Width && dst.Stride >= src.Stride
}

// CopyInto copies src's pixel data into dst in place. dst must already be
// shaped to receive src (matching height and format; matching width for
// uncompressed formats; dst.Stride >= src.Stride for JPEG) — see
// shapeMatches. Returns ImageParametersMismatch otherwise.
func (src *Image) CopyInto(dst *Image) error {
	if !shapeMatches(dst, src) {
		return fmt.Errorf("copying image: %w", xerror.ImageParametersMismatch)
	}
	if src.Format == JPEG {
		dst.Width = src.Width
		copy(dst.Pix, src.Pix[:src.Width])
		return nil
	}
	rowBytes := src.Width * src.Format.BytesPerPixel()
	for y := 0; y < src.Height; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+rowBytes]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+rowBytes]
		copy(dstRow, srcRow)
	}
	return nil
}

// CopyOrClone replaces *dst with a fresh clone of src if the shapes
// disagree, otherwise behaves like CopyInto. This is what the capture
// engine calls on every delivered frame (spec.md §4.1's ingest rule).
func (src *Image) CopyOrClone(dst **Image) error {
	if *dst != nil && shapeMatches(*dst, src) {
		return src.CopyInto(*dst)
	}
	clone := &Image{
		Width:  src.Width,
		Height: src.Height,
		Stride: src.Stride,
		Format: src.Format,
		Pix:    make([]byte, len(src.Pix)),
		owned:  true,
	}
	copy(clone.Pix, src.Pix)
	*dst = clone
	return nil
}

// JPEGBytes returns the encoded payload for a PixelFormat JPEG image.
func (img *Image) JPEGBytes() []byte {
	return img.Pix[:img.Width]
}
