package animation

import "math"

// RawFrame is a model-produced frame exactly as returned by the API,
// before any normalization. Index is the frame's position in the cycle.
type RawFrame struct {
	Index int
	Data  []byte
	MIME  string
}

// NormalizedFrame is a frame after background removal, cropping and
// scaling onto the shared canvas. Pix holds straight-alpha RGBA bytes,
// 4 per pixel in row-major order; PNG holds the same pixels encoded
// as a standalone PNG file.
type NormalizedFrame struct {
	Index  int
	Width  int
	Height int
	Pix    []byte
	PNG    []byte
}

// ReferenceImage is the character image every frame request carries.
type ReferenceImage struct {
	Data []byte
	MIME string
}

const (
	DefaultFrameCount = 4
	DefaultFPS        = 8.0
)

// Config controls one animation run.
type Config struct {
	// FrameCount is how many frames to request; any positive value
	// works, though small cycles read best.
	FrameCount int
	FPS        float64

	// Zoom scales the subject within the canvas, a fraction in (0,1].
	Zoom float64

	// Canvas size in pixels. Zero means "use the reference image size".
	Width  int
	Height int
}

// Normalize fills defaults and clamps out-of-range values. Invalid
// numbers never fail a run; they fall back to something workable.
func (c Config) Normalize() Config {
	if c.FrameCount <= 0 {
		c.FrameCount = DefaultFrameCount
	}
	if c.FPS <= 0 || math.IsNaN(c.FPS) || math.IsInf(c.FPS, 0) {
		c.FPS = DefaultFPS
	}
	if c.Zoom <= 0 || c.Zoom > 1 || math.IsNaN(c.Zoom) {
		c.Zoom = 1.0
	}
	if c.Width < 0 {
		c.Width = 0
	}
	if c.Height < 0 {
		c.Height = 0
	}
	return c
}

// FrameDelayMS is the per-frame display time in whole milliseconds,
// rounded from 1000/FPS. At the default 8 fps this is 125 ms.
func (c Config) FrameDelayMS() int {
	fps := c.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return int(math.Round(1000 / fps))
}

// FrameDelayMSFloat is the unrounded per-frame delay. The GIF encoder
// receives this and quantizes to centiseconds itself.
func (c Config) FrameDelayMSFloat() float64 {
	fps := c.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	return 1000 / fps
}
