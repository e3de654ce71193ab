package encode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"math"
)

// GIF has no alpha channel, so transparency survives as a chroma key:
// pixels below half alpha are flattened to this exact color, and
// palette slot 0 reserves it as the designated transparent entry.
const (
	keyRed   = 0xFF
	keyGreen = 0x00
	keyBlue  = 0xFF
)

var keyedPalette = buildKeyedPalette()

func buildKeyedPalette() color.Palette {
	pal := make(color.Palette, 0, 256)
	pal = append(pal, color.NRGBA{R: keyRed, G: keyGreen, B: keyBlue, A: 0})
	pal = append(pal, palette.Plan9[:255]...)
	return pal
}

// ChromaKey returns a copy of a straight-alpha RGBA buffer flattened
// for GIF: pixels below half alpha become the exact key color, all
// others keep their color at full alpha. The input is never modified.
func ChromaKey(pix []byte) []byte {
	out := make([]byte, len(pix))
	copy(out, pix)
	for i := 0; i+3 < len(out); i += 4 {
		if out[i+3] < 128 {
			out[i] = keyRed
			out[i+1] = keyGreen
			out[i+2] = keyBlue
		}
		out[i+3] = 0xFF
	}
	return out
}

// GIF assembles full-frame RGBA buffers into a looping GIF. delayMS is
// quantized to the format's centisecond ticks. Frames are disposed to
// background so keyed-out regions do not ghost between frames.
func GIF(frames [][]byte, width, height int, delayMS float64) ([]byte, error) {
	if len(frames) == 0 {
		return nil, errors.New("gif: no frames")
	}
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("gif: invalid canvas %dx%d", width, height)
	}
	want := width * height * 4
	for i, frame := range frames {
		if len(frame) != want {
			return nil, fmt.Errorf("gif: frame %d has %d bytes, want %d", i+1, len(frame), want)
		}
	}

	delayCS := int(math.Round(delayMS / 10))
	if delayCS < 0 {
		delayCS = 0
	}

	// Slot 0 reads as transparent black in premultiplied space and
	// would swallow dark pixels in a nearest-color search, so matching
	// runs against the opaque tail with the index shifted by one.
	opaque := keyedPalette[1:]
	lookup := make(map[uint32]uint8, 512)

	out := &gif.GIF{
		LoopCount: 0,
		Config: image.Config{
			ColorModel: keyedPalette,
			Width:      width,
			Height:     height,
		},
	}

	for _, frame := range frames {
		keyed := ChromaKey(frame)
		pm := image.NewPaletted(image.Rect(0, 0, width, height), keyedPalette)
		for pi, i := 0, 0; i < len(keyed); pi, i = pi+1, i+4 {
			r, g, b := keyed[i], keyed[i+1], keyed[i+2]
			if r == keyRed && g == keyGreen && b == keyBlue {
				pm.Pix[pi] = 0
				continue
			}
			packed := uint32(r)<<16 | uint32(g)<<8 | uint32(b)
			idx, ok := lookup[packed]
			if !ok {
				idx = uint8(opaque.Index(color.NRGBA{R: r, G: g, B: b, A: 0xFF}) + 1)
				lookup[packed] = idx
			}
			pm.Pix[pi] = idx
		}
		out.Image = append(out.Image, pm)
		out.Delay = append(out.Delay, delayCS)
		out.Disposal = append(out.Disposal, gif.DisposalBackground)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, out); err != nil {
		return nil, fmt.Errorf("gif: encode: %w", err)
	}
	return buf.Bytes(), nil
}
