package animation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sprite-loop-studio/internal/encode"
)

// Phase is the observable state of a run. Runs move Idle through
// Generating, Normalizing and Encoding to Done; Cancelled and Failed
// are terminal, with no automatic retry.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseGenerating
	PhaseNormalizing
	PhaseEncoding
	PhaseDone
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseGenerating:
		return "generating"
	case PhaseNormalizing:
		return "normalizing"
	case PhaseEncoding:
		return "encoding"
	case PhaseDone:
		return "done"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ProgressFunc observes phase transitions. done and total carry
// per-frame progress during Generating and Normalizing and are zero
// elsewhere. Calls during Generating may come from multiple goroutines.
type ProgressFunc func(phase Phase, done, total int)

// CredentialGate answers whether an API credential is selected before
// any remote call goes out. When none is, Request lets the gate ask its
// user to pick one; Selected is consulted again afterwards.
type CredentialGate interface {
	Selected() bool
	Request() error
}

// Run-level failures.
var (
	ErrNoCredential = errors.New("animation: no API credential selected")
	ErrNoFrames     = errors.New("animation: no frames survived normalization")
)

const fallbackCanvas = 512

type PipelineOptions struct {
	Source    ImageGenerator
	BatchSize int
	Stagger   time.Duration
	Gate      CredentialGate
	Progress  ProgressFunc
	Logger    *slog.Logger
}

// Pipeline runs the whole flow for one request: batched generation,
// frame normalization, artifact encoding.
type Pipeline struct {
	generator *Generator
	gate      CredentialGate
	progress  ProgressFunc
	logger    *slog.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p := &Pipeline{
		gate:     opts.Gate,
		progress: opts.Progress,
		logger:   logger,
	}
	p.generator = NewGenerator(GeneratorOptions{
		Source:    opts.Source,
		BatchSize: opts.BatchSize,
		Stagger:   opts.Stagger,
		Logger:    logger,
		OnFrame: func(done, total int) {
			p.report(PhaseGenerating, done, total)
		},
	})
	return p
}

// Request describes one animation run.
type Request struct {
	Reference ReferenceImage
	Action    string
	Preset    MotionPreset
	Config    Config
}

// Result carries the artifacts of a finished run. GIF and ZIP may be
// nil when their encoders fail; APNG is always set on success.
type Result struct {
	RunID  string
	Width  int
	Height int
	APNG   []byte
	GIF    []byte
	ZIP    []byte
	Frames []NormalizedFrame
}

// Run executes the pipeline for one request. The returned error is nil
// only when the run reached Done; Categorize tells callers how to
// present a failure.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	if p.gate != nil && !p.gate.Selected() {
		if err := p.gate.Request(); err != nil {
			return nil, p.fail(logger, fmt.Errorf("%w: %v", ErrNoCredential, err))
		}
		if !p.gate.Selected() {
			return nil, p.fail(logger, ErrNoCredential)
		}
	}

	if len(req.Reference.Data) == 0 {
		return nil, p.fail(logger, errors.New("animation: reference image is empty"))
	}

	cfg := req.Config.Normalize()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		w, h, err := referenceSize(req.Reference)
		if err != nil {
			logger.Warn("cannot read reference dimensions, using fallback canvas", "error", err)
			w, h = fallbackCanvas, fallbackCanvas
		}
		if cfg.Width <= 0 {
			cfg.Width = w
		}
		if cfg.Height <= 0 {
			cfg.Height = h
		}
	}

	logger.Info("run started",
		"action", req.Action,
		"motion", req.Preset.Key,
		"frames", cfg.FrameCount,
		"fps", cfg.FPS,
		"canvas", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
	)

	p.report(PhaseGenerating, 0, cfg.FrameCount)
	raw, err := p.generator.Frames(ctx, req.Reference, req.Action, req.Preset, cfg.FrameCount)
	if err != nil {
		return nil, p.fail(logger, err)
	}

	p.report(PhaseNormalizing, 0, len(raw))
	frames, dropErrs := normalizeAll(raw, cfg, func(i int, nerr error) {
		if nerr != nil {
			logger.Warn("dropping frame", "frame", raw[i].Index+1, "error", nerr)
		}
		p.report(PhaseNormalizing, i+1, len(raw))
	})
	if len(frames) == 0 {
		return nil, p.fail(logger, ErrNoFrames)
	}
	if len(dropErrs) > 0 {
		logger.Info("continuing with surviving frames", "kept", len(frames), "dropped", len(dropErrs))
	}

	p.report(PhaseEncoding, 0, 0)
	result, err := p.encodeArtifacts(logger, frames, cfg)
	if err != nil {
		return nil, p.fail(logger, err)
	}
	result.RunID = runID

	p.report(PhaseDone, 0, 0)
	logger.Info("run finished",
		"frames", len(frames),
		"apng_bytes", len(result.APNG),
		"gif_bytes", len(result.GIF),
		"zip_bytes", len(result.ZIP),
	)
	return result, nil
}

// encodeArtifacts builds the three delivery formats. APNG is the
// primary artifact and its failure fails the run; GIF and ZIP are
// conveniences and their failure only costs the artifact.
func (p *Pipeline) encodeArtifacts(logger *slog.Logger, frames []NormalizedFrame, cfg Config) (*Result, error) {
	buffers := make([][]byte, len(frames))
	pngs := make([][]byte, len(frames))
	for i, f := range frames {
		buffers[i] = f.Pix
		pngs[i] = f.PNG
	}

	apngData, err := encode.APNG(buffers, cfg.Width, cfg.Height, cfg.FrameDelayMS())
	if err != nil {
		return nil, fmt.Errorf("encode apng: %w", err)
	}

	result := &Result{
		Width:  cfg.Width,
		Height: cfg.Height,
		APNG:   apngData,
		Frames: frames,
	}

	gifData, err := encode.GIF(buffers, cfg.Width, cfg.Height, cfg.FrameDelayMSFloat())
	if err != nil {
		logger.Warn("gif encoding failed, continuing without gif", "error", err)
	} else {
		result.GIF = gifData
	}

	zipData, err := encode.ZIP(pngs)
	if err != nil {
		logger.Warn("zip packaging failed, continuing without zip", "error", err)
	} else {
		result.ZIP = zipData
	}

	return result, nil
}

func (p *Pipeline) fail(logger *slog.Logger, err error) error {
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		p.report(PhaseCancelled, 0, 0)
		logger.Info("run cancelled")
		return err
	}
	p.report(PhaseFailed, 0, 0)
	logger.Error("run failed", "error", err)
	return err
}

func (p *Pipeline) report(phase Phase, done, total int) {
	if p.progress != nil {
		p.progress(phase, done, total)
	}
}

func referenceSize(ref ReferenceImage) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(ref.Data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
