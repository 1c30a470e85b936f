// Package imaging normalizes uploaded card images before they are sent to a vision model.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// JPEGQuality is the re-encode quality for prepared images.
const JPEGQuality = 90

// ErrEmptyImage is returned when Prepare receives no bytes.
var ErrEmptyImage = errors.New("image is empty")

// Prepare decodes data, downscales it so the longest edge is at most maxEdge
// (maxEdge <= 0 disables scaling), flattens transparency onto white and
// re-encodes it as JPEG.
func Prepare(data []byte, maxEdge int) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := targetSize(bounds.Dx(), bounds.Dy(), maxEdge)
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("decode image: %s has no pixels", format)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// targetSize keeps the aspect ratio while bounding the longest edge.
func targetSize(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		nh := h * maxEdge / w
		if nh < 1 {
			nh = 1
		}
		return maxEdge, nh
	}
	nw := w * maxEdge / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxEdge
}
