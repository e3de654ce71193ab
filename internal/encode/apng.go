// Package encode turns normalized RGBA frame buffers into the delivery
// formats: animated PNG, chroma-keyed GIF and a ZIP of per-frame PNGs.
package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/shutej/apng"
)

// maxAPNGDelayMS is the largest per-frame delay an fcTL chunk can carry
// with a millisecond denominator.
const maxAPNGDelayMS = 65535

// APNG assembles full-frame RGBA buffers into a looping animated PNG.
// Every buffer must hold width*height*4 straight-alpha bytes. delayMS
// applies to each frame; the animation repeats forever.
func APNG(frames [][]byte, width, height, delayMS int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("apng: no frames")
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("apng: invalid canvas %dx%d", width, height)
	}
	want := width * height * 4
	for i, frame := range frames {
		if len(frame) != want {
			return nil, fmt.Errorf("apng: frame %d has %d bytes, want %d", i+1, len(frame), want)
		}
	}
	if delayMS < 0 {
		delayMS = 0
	}
	if delayMS > maxAPNGDelayMS {
		delayMS = maxAPNGDelayMS
	}

	var buf bytes.Buffer
	buf.WriteString(apng.PngHeader)

	ihdr := &apng.Chunk_IHDR{
		Width:     uint32(width),
		Height:    uint32(height),
		BitDepth:  apng.BitDepth_8,
		ColorType: apng.ColorType_TrueColorAlpha,
	}
	if _, err := ihdr.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("apng: write IHDR: %w", err)
	}

	actl := &apng.Chunk_acTL{
		NumFrames: uint32(len(frames)),
		NumPlays:  0, // loop forever
	}
	if _, err := actl.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("apng: write acTL: %w", err)
	}

	seq := apng.NewSequenceNumbers()

	for i, frame := range frames {
		img := &image.NRGBA{
			Pix:    frame,
			Stride: width * 4,
			Rect:   image.Rect(0, 0, width, height),
		}

		fctl := &apng.Chunk_fcTL{
			SequenceNumber: seq.Next(),
			Width:          uint32(width),
			Height:         uint32(height),
			DelayNum:       uint16(delayMS),
			DelayDen:       1000,
			DisposeOp:      apng.DisposeOp_None,
			BlendOp:        apng.BlendOp_Source,
		}
		if _, err := fctl.WriteTo(&buf); err != nil {
			return nil, fmt.Errorf("apng: write fcTL %d: %w", i+1, err)
		}

		// The first frame doubles as the PNG default image, so its
		// pixels go out as IDAT; later frames are fdAT.
		if i == 0 {
			e := ihdr.NewEncoder_IDAT(img, apng.DefaultCompression)
			for e.Next() {
				if _, err := e.Chunk().WriteTo(&buf); err != nil {
					return nil, fmt.Errorf("apng: write IDAT: %w", err)
				}
			}
			if err := e.Err(); err != nil {
				return nil, fmt.Errorf("apng: encode frame 1: %w", err)
			}
			continue
		}

		e := ihdr.NewEncoder_fdAT(seq, img, apng.DefaultCompression)
		for e.Next() {
			if _, err := e.Chunk().WriteTo(&buf); err != nil {
				return nil, fmt.Errorf("apng: write fdAT %d: %w", i+1, err)
			}
		}
		if err := e.Err(); err != nil {
			return nil, fmt.Errorf("apng: encode frame %d: %w", i+1, err)
		}
	}

	iend := &apng.Chunk_IEND{}
	if _, err := iend.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("apng: write IEND: %w", err)
	}

	return buf.Bytes(), nil
}
