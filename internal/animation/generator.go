package animation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"sprite-loop-studio/internal/gemini"
)

// ErrCancelled marks a run stopped by its context rather than by a
// request failure.
var ErrCancelled = errors.New("animation: run cancelled")

// ImageGenerator is the remote boundary the generator drives. It is
// satisfied by *gemini.Client.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, ref gemini.ImageInput, prompt string) (gemini.Image, error)
}

type GeneratorOptions struct {
	Source    ImageGenerator
	BatchSize int
	Stagger   time.Duration
	Logger    *slog.Logger

	// OnFrame is called after each frame arrives with how many frames
	// have completed so far. Calls may come from multiple goroutines.
	OnFrame func(done, total int)
}

// Generator requests motion frames from the image model in small
// batches. A batch must fully settle before the next starts, and any
// single failure abandons the whole run.
type Generator struct {
	source    ImageGenerator
	batchSize int
	stagger   time.Duration
	logger    *slog.Logger
	onFrame   func(done, total int)
}

func NewGenerator(opts GeneratorOptions) *Generator {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 3
	}
	stagger := opts.Stagger
	if stagger <= 0 {
		stagger = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Generator{
		source:    opts.Source,
		batchSize: batchSize,
		stagger:   stagger,
		logger:    logger,
		onFrame:   opts.OnFrame,
	}
}

// Frames requests count frames of the action and returns them in frame
// order regardless of completion order. Requests inside a batch start
// staggered by position to avoid hammering the API at once. The context
// is checked before each batch and after the last one settles; a
// cancelled run surfaces as ErrCancelled.
func (g *Generator) Frames(ctx context.Context, ref ReferenceImage, action string, preset MotionPreset, count int) ([]RawFrame, error) {
	if g.source == nil {
		return nil, errors.New("animation: generator has no image source")
	}
	if len(ref.Data) == 0 {
		return nil, errors.New("animation: reference image is empty")
	}
	if count < 1 {
		return nil, fmt.Errorf("animation: invalid frame count %d", count)
	}

	input := gemini.ImageInput{Data: ref.Data, MIME: ref.MIME}
	frames := make([]RawFrame, count)
	var done atomic.Int32

	for start := 0; start < count; start += g.batchSize {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("%w before frame %d", ErrCancelled, start+1)
			}
			return nil, fmt.Errorf("run deadline hit before frame %d: %w", start+1, err)
		}

		end := min(start+g.batchSize, count)
		g.logger.Debug("requesting frame batch", "from", start+1, "to", end, "total", count)

		eg, egCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			idx := i
			delay := time.Duration(i-start) * g.stagger
			eg.Go(func() error {
				if delay > 0 {
					timer := time.NewTimer(delay)
					select {
					case <-timer.C:
					case <-egCtx.Done():
						timer.Stop()
						return egCtx.Err()
					}
				}

				prompt := BuildFramePrompt(action, idx+1, count, preset)
				img, err := g.source.GenerateImage(egCtx, input, prompt)
				if err != nil {
					return fmt.Errorf("frame %d/%d: %w", idx+1, count, err)
				}

				frames[idx] = RawFrame{Index: idx, Data: img.Data, MIME: img.MIME}
				if g.onFrame != nil {
					g.onFrame(int(done.Add(1)), count)
				}
				return nil
			})
		}

		if err := eg.Wait(); err != nil {
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil, fmt.Errorf("%w after %d of %d frames", ErrCancelled, done.Load(), count)
			}
			return nil, err
		}
	}

	// A cancellation that lands during the final batch still aborts
	// the run; frames from a cancelled run are never delivered.
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w after the final batch", ErrCancelled)
		}
		return nil, fmt.Errorf("run deadline hit after the final batch: %w", err)
	}

	return frames, nil
}
