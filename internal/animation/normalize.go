package animation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"

	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// Normalization constants. The model is asked for a pure white
// background, so background detection is a channel threshold; the
// subject is framed at a fixed share of the canvas height.
const (
	whiteThreshold     = 240
	alphaFloor         = 20
	edgeMarginRatio    = 0.05
	subjectHeightRatio = 0.85
)

// ErrEmptyFrame reports a frame with no subject pixels left after
// background removal.
var ErrEmptyFrame = errors.New("animation: frame has no subject pixels")

// NormalizeFrame decodes one raw frame, strips the near-white
// background, crops to the subject and renders it centered on a
// cfg.Width x cfg.Height canvas. Pix in the result is straight-alpha
// RGBA; PNG is the same canvas as a standalone file.
func NormalizeFrame(raw RawFrame, cfg Config) (NormalizedFrame, error) {
	src, _, err := image.Decode(bytes.NewReader(raw.Data))
	if err != nil {
		return NormalizedFrame{}, fmt.Errorf("decode frame %d: %w", raw.Index+1, err)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return NormalizedFrame{}, fmt.Errorf("frame %d: invalid canvas %dx%d", raw.Index+1, cfg.Width, cfg.Height)
	}

	nat := toNRGBA(src)
	clearBackground(nat)

	box, ok := subjectBounds(nat)
	if !ok {
		return NormalizedFrame{}, fmt.Errorf("frame %d: %w", raw.Index+1, ErrEmptyFrame)
	}

	zoom := cfg.Zoom
	if zoom <= 0 {
		zoom = 1.0
	}
	scale := float64(cfg.Height) * subjectHeightRatio * zoom / float64(box.Dy())
	scaledW := int(math.Round(float64(box.Dx()) * scale))
	scaledH := int(math.Round(float64(box.Dy()) * scale))
	if scaledW < 1 {
		scaledW = 1
	}
	if scaledH < 1 {
		scaledH = 1
	}

	// Center on the canvas; an oversized subject overflows and clips.
	canvas := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	dstX := (cfg.Width - scaledW) / 2
	dstY := (cfg.Height - scaledH) / 2
	dst := image.Rect(dstX, dstY, dstX+scaledW, dstY+scaledH)
	xdraw.CatmullRom.Scale(canvas, dst, nat, box, xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return NormalizedFrame{}, fmt.Errorf("encode frame %d: %w", raw.Index+1, err)
	}

	return NormalizedFrame{
		Index:  raw.Index,
		Width:  cfg.Width,
		Height: cfg.Height,
		Pix:    canvas.Pix,
		PNG:    buf.Bytes(),
	}, nil
}

// NormalizeFrames normalizes every frame it can and drops the rest.
// Output order follows input order and indices keep their original
// values, so a dropped frame leaves a gap instead of renumbering.
// The returned errors describe the dropped frames.
func NormalizeFrames(frames []RawFrame, cfg Config) ([]NormalizedFrame, []error) {
	return normalizeAll(frames, cfg, nil)
}

// normalizeAll is NormalizeFrames with an observer: after each frame it
// reports the input position and the drop error, nil for kept frames.
func normalizeAll(frames []RawFrame, cfg Config, observe func(i int, err error)) ([]NormalizedFrame, []error) {
	out := make([]NormalizedFrame, 0, len(frames))
	var errs []error
	for i, raw := range frames {
		nf, err := NormalizeFrame(raw, cfg)
		if err != nil {
			errs = append(errs, err)
		} else {
			out = append(out, nf)
		}
		if observe != nil {
			observe(i, err)
		}
	}
	return out, errs
}

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// clearBackground makes near-white pixels fully transparent. A thin
// band at each edge is cleared regardless of color; it catches border
// artifacts the model sometimes leaves.
func clearBackground(img *image.NRGBA) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	marginX := int(float64(w) * edgeMarginRatio)
	marginY := int(float64(h) * edgeMarginRatio)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		edgeRow := y < marginY || y >= h-marginY
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+4]
			if edgeRow || x < marginX || x >= w-marginX {
				px[3] = 0
				continue
			}
			if px[0] > whiteThreshold && px[1] > whiteThreshold && px[2] > whiteThreshold {
				px[3] = 0
			}
		}
	}
}

// subjectBounds is the tight box around pixels with alpha above the
// floor. ok is false when nothing qualifies.
func subjectBounds(img *image.NRGBA) (image.Rectangle, bool) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			if row[x*4+3] <= alphaFloor {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}
