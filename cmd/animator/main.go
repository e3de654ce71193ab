package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"sprite-loop-studio/internal/animation"
	"sprite-loop-studio/internal/config"
	"sprite-loop-studio/internal/gemini"
	"sprite-loop-studio/internal/httpclient"
	"sprite-loop-studio/internal/watch"
)

func main() {
	_ = godotenv.Load()

	imagePath := flag.String("image", "", "reference character image (png/jpg/webp)")
	action := flag.String("action", "", "motion description, e.g. \"swinging a sword\"")
	motion := flag.String("motion", "", "motion preset key (see -list-motions)")
	frames := flag.Int("frames", animation.DefaultFrameCount, "frames per cycle (1-24)")
	fps := flag.Float64("fps", animation.DefaultFPS, "playback speed in frames per second")
	zoom := flag.Float64("zoom", 1.0, "subject zoom, a fraction in (0,1]")
	width := flag.Int("width", 0, "canvas width (0 = reference width)")
	height := flag.Int("height", 0, "canvas height (0 = reference height)")
	outDir := flag.String("out", "", "output directory (default: next to the input image)")
	framesDir := flag.String("frames-dir", "", "also dump each normalized frame as a PNG here")
	watchDir := flag.String("watch", "", "watch a folder and animate every image dropped into it")
	listMotions := flag.Bool("list-motions", false, "print available motion presets and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	catalog := animation.DefaultCatalog()
	if cfg.MotionCatalog != "" {
		if err := catalog.LoadFile(cfg.MotionCatalog); err != nil {
			logger.Error("motion catalog failed", "path", cfg.MotionCatalog, "error", err)
			os.Exit(1)
		}
	}

	if *listMotions {
		for _, p := range catalog.Presets() {
			fmt.Printf("%-14s %s\n", p.Key, p.Name)
		}
		return
	}

	var preset animation.MotionPreset
	if *motion != "" {
		p, ok := catalog.Get(*motion)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown motion preset %q (try -list-motions)\n", *motion)
			os.Exit(2)
		}
		preset = p
	}

	if strings.TrimSpace(*action) == "" && preset.Key == "" {
		fmt.Fprintln(os.Stderr, "need -action text or a -motion preset")
		os.Exit(2)
	}
	if *imagePath != "" && *watchDir != "" {
		fmt.Fprintln(os.Stderr, "use either -image or -watch, not both")
		os.Exit(2)
	}
	if *frames < 1 || *frames > 24 {
		fmt.Fprintln(os.Stderr, "-frames must be between 1 and 24")
		os.Exit(2)
	}
	if *fps <= 0 {
		fmt.Fprintln(os.Stderr, "-fps must be positive")
		os.Exit(2)
	}
	if *zoom <= 0 || *zoom > 1 {
		fmt.Fprintln(os.Stderr, "-zoom must be in (0,1]")
		os.Exit(2)
	}

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	pipe := animation.NewPipeline(animation.PipelineOptions{
		Source:    gem,
		BatchSize: cfg.BatchSize,
		Stagger:   cfg.BatchStagger,
		Gate:      envGate{key: cfg.GeminiAPIKey, logger: logger},
		Progress:  progressLogger(logger),
		Logger:    logger,
	})

	app := &app{
		pipeline: pipe,
		cfg:      cfg,
		runCfg: animation.Config{
			FrameCount: *frames,
			FPS:        *fps,
			Zoom:       *zoom,
			Width:      *width,
			Height:     *height,
		},
		action:    *action,
		preset:    preset,
		outDir:    *outDir,
		framesDir: *framesDir,
		logger:    logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watchDir != "" {
		if err := app.watch(ctx, *watchDir); err != nil {
			logger.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: animator -image character.png -action \"walking\" [-motion walk_cycle]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := app.runOnce(ctx, *imagePath); err != nil {
		os.Exit(reportExit(err))
	}
}

type app struct {
	pipeline  *animation.Pipeline
	cfg       config.Config
	runCfg    animation.Config
	action    string
	preset    animation.MotionPreset
	outDir    string
	framesDir string
	logger    *slog.Logger
}

// runOnce generates one animation from a reference image file and
// writes the artifacts next to it (or to -out).
func (a *app) runOnce(ctx context.Context, path string) error {
	ref, err := readReference(path)
	if err != nil {
		a.logger.Error("cannot read reference image", "path", path, "error", err)
		return err
	}

	result, err := a.pipeline.Run(ctx, animation.Request{
		Reference: ref,
		Action:    a.action,
		Preset:    a.preset,
		Config:    a.runCfg,
	})
	if err != nil {
		return err
	}

	return a.writeArtifacts(path, result)
}

// watch runs the drop-folder mode: every image file that settles in dir
// starts a pipeline run, bounded by MaxConcurrent. Artifacts default to
// an "animated" subfolder so they do not re-trigger the watcher.
func (a *app) watch(ctx context.Context, dir string) error {
	if a.outDir == "" {
		a.outDir = filepath.Join(dir, "animated")
	}

	sem := make(chan struct{}, a.cfg.MaxConcurrent)
	var inFlight sync.Map

	onFile := func(path string) {
		if _, busy := inFlight.LoadOrStore(path, struct{}{}); busy {
			a.logger.Debug("run already in flight, skipping", "path", path)
			return
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			inFlight.Delete(path)
			return
		}

		go func() {
			defer func() {
				<-sem
				inFlight.Delete(path)
			}()

			runCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
			defer cancel()

			if err := a.runOnce(runCtx, path); err != nil {
				if cat, reason := animation.Categorize(err); cat != animation.CategoryCancelled {
					a.logger.Warn("drop-folder run did not finish", "path", path, "category", cat.String(), "reason", reason)
				}
			}
		}()
	}

	w, err := watch.New(watch.Options{
		Dir:    dir,
		OnFile: onFile,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	a.logger.Info("drop folder ready", "dir", dir, "out", a.outDir)

	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

func (a *app) writeArtifacts(inputPath string, result *animation.Result) error {
	dir := a.outDir
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stem := filepath.Join(dir, fmt.Sprintf("%s_anim_%s", base, shortID(result.RunID)))

	outputs := []struct {
		suffix string
		data   []byte
	}{
		{".png", result.APNG},
		{".gif", result.GIF},
		{"_frames.zip", result.ZIP},
	}
	for _, out := range outputs {
		if len(out.data) == 0 {
			continue
		}
		name := stem + out.suffix
		if err := os.WriteFile(name, out.data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		a.logger.Info("artifact written", "path", name, "bytes", len(out.data))
	}

	if a.framesDir != "" {
		if err := dumpFrames(a.framesDir, base, result.Frames); err != nil {
			return err
		}
	}

	return nil
}

func dumpFrames(dir, base string, frames []animation.NormalizedFrame) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create frames dir: %w", err)
	}
	for i, f := range frames {
		name := filepath.Join(dir, fmt.Sprintf("%s_frame_%02d.png", base, i+1))
		if err := os.WriteFile(name, f.PNG, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// shortID trims a run ID down to a filename-friendly tag.
func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}

func readReference(path string) (animation.ReferenceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return animation.ReferenceImage{}, err
	}
	if len(data) == 0 {
		return animation.ReferenceImage{}, fmt.Errorf("%s is empty", path)
	}
	return animation.ReferenceImage{Data: data, MIME: detectMIME(path, data)}, nil
}

// detectMIME sniffs content first and falls back to the extension.
func detectMIME(path string, data []byte) string {
	if mime := http.DetectContentType(data); strings.HasPrefix(mime, "image/") {
		return mime
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	}
	return "image/png"
}

// envGate is the CLI credential gate: the key either came from the
// environment or .env at startup, or the run cannot proceed.
type envGate struct {
	key    string
	logger *slog.Logger
}

func (g envGate) Selected() bool {
	return strings.TrimSpace(g.key) != ""
}

func (g envGate) Request() error {
	g.logger.Error("no API key configured; set GEMINI_API_KEY in the environment or .env")
	return nil
}

func progressLogger(logger *slog.Logger) animation.ProgressFunc {
	return func(phase animation.Phase, done, total int) {
		switch {
		case done == 0 && total == 0:
			logger.Info("phase", "phase", phase.String())
		case done == 0:
			logger.Info("phase", "phase", phase.String(), "total", total)
		default:
			logger.Debug("progress", "phase", phase.String(), "done", done, "total", total)
		}
	}
}

// reportExit prints a one-line summary to stderr and picks the exit
// code: 130 for cancellation, 2 for credential problems, 1 otherwise.
func reportExit(err error) int {
	cat, reason := animation.Categorize(err)
	switch cat {
	case animation.CategoryCancelled:
		fmt.Fprintln(os.Stderr, "cancelled:", reason)
		return 130
	case animation.CategoryNoCredential:
		fmt.Fprintln(os.Stderr, "credential:", reason)
		return 2
	case animation.CategorySafety:
		fmt.Fprintln(os.Stderr, "blocked:", reason)
		return 1
	default:
		fmt.Fprintln(os.Stderr, "failed:", reason)
		return 1
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Debug {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
	}))
}
