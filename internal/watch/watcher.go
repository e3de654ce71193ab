// Package watch turns a drop folder into an animation queue: image
// files appearing or changing in the folder are debounced and handed
// to a callback once writes settle.
package watch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var defaultExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

type Options struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
	OnFile     func(path string)
	Logger     *slog.Logger
}

type Watcher struct {
	dir      string
	debounce time.Duration
	exts     map[string]struct{}
	onFile   func(path string)
	logger   *slog.Logger
	fs       *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

func New(opts Options) (*Watcher, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("watch: dir is required")
	}
	if opts.OnFile == nil {
		return nil, errors.New("watch: OnFile is required")
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	exts := opts.Extensions
	if len(exts) == 0 {
		exts = defaultExtensions
	}
	extSet := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[ext] = struct{}{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}

	return &Watcher{
		dir:      opts.Dir,
		debounce: debounce,
		exts:     extSet,
		onFile:   opts.OnFile,
		logger:   logger,
		fs:       fs,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start registers the watch and handles events on a background
// goroutine until Close.
func (w *Watcher) Start() error {
	if err := w.fs.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching folder", "dir", w.dir)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !w.wants(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch error", "error", err)
		}
	}
}

// wants filters to image extensions and skips dotfiles, which editors
// and sync clients use for partial writes.
func (w *Watcher) wants(path string) bool {
	base := filepath.Base(path)
	if base == "" || base[0] == '.' {
		return false
	}
	_, ok := w.exts[strings.ToLower(filepath.Ext(base))]
	return ok
}

// schedule re-arms the debounce timer for a path, so rapid successive
// events collapse into one callback after the quiet period.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.fire(path)
	})
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	onFile := w.onFile
	w.mu.Unlock()

	onFile(path)
}

// Close stops the watcher and drops any pending debounce timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	return w.fs.Close()
}
