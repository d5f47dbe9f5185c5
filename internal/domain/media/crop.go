package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // decoder registration
	"image/jpeg"
	_ "image/png" // decoder registration
	"io"

	"golang.org/x/image/draw"

	"cellule/internal/domain/errs"
)

// Aspect is a width:height ratio.
type Aspect struct {
	W int
	H int
}

// Target aspects for uploaded photos.
var (
	AspectSquare = Aspect{W: 1, H: 1}  // member photos
	AspectWide   = Aspect{W: 16, H: 9} // event photos
)

// Defaults for re-encoding.
const (
	DefaultMaxWidth = 1600
	DefaultQuality  = 85
)

// MaxPixels caps the decoded size of a source image, checked from its header before decoding.
const MaxPixels = 40_000_000

// Rect is a crop rectangle in source pixel coordinates, as chosen in the crop modal.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// Options controls a crop.
type Options struct {
	Aspect   Aspect
	Rect     *Rect // nil crops the largest centered area
	MaxWidth int
	Quality  int
}

// Crop decodes an image, crops it to the requested aspect and re-encodes it as JPEG.
// PRE: src holds a JPEG, PNG or GIF image of at most MaxPixels pixels
// POST: Returns JPEG bytes whose dimensions match opts.Aspect (up to integer rounding)
// INVARIANT: Output width never exceeds MaxWidth
func Crop(src io.Reader, opts Options) ([]byte, error) {
	if opts.Aspect.W <= 0 || opts.Aspect.H <= 0 {
		return nil, fmt.Errorf("invalid aspect %d:%d", opts.Aspect.W, opts.Aspect.H)
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Invalid("photo", "image illisible")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, errs.Invalid("photo", "image trop grande")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errs.Invalid("photo", "image illisible")
	}

	area := img.Bounds()
	if opts.Rect != nil {
		r := image.Rect(opts.Rect.X, opts.Rect.Y, opts.Rect.X+opts.Rect.W, opts.Rect.Y+opts.Rect.H).
			Add(area.Min).
			Intersect(area)
		if r.Empty() {
			return nil, errs.Invalid("crop", "zone de recadrage hors de l'image")
		}
		area = r
	}
	area = FitAspect(area, opts.Aspect)
	if area.Empty() {
		return nil, errs.Invalid("crop", "zone de recadrage trop petite")
	}

	w, h := area.Dx(), area.Dy()
	if w > opts.MaxWidth {
		h = h * opts.MaxWidth / w
		w = opts.MaxWidth
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == area.Dx() {
		draw.Copy(dst, image.Point{}, img, area, draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, area, draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// FitAspect returns the largest rectangle of the given aspect centered inside r.
func FitAspect(r image.Rectangle, a Aspect) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	cw, ch := w, h
	if w*a.H > h*a.W {
		cw = h * a.W / a.H
	} else {
		ch = w * a.H / a.W
	}
	x := r.Min.X + (w-cw)/2
	y := r.Min.Y + (h-ch)/2
	return image.Rect(x, y, x+cw, y+ch)
}
