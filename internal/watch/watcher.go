package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"subpilot/internal/batch"
	"subpilot/internal/logging"
	"subpilot/internal/media"
	"subpilot/internal/services"
	"subpilot/internal/services/subtitler"
)

// LockFileName is created inside the watched directory.
const LockFileName = ".subpilot.lock"

const (
	defaultDebounce  = 2 * time.Second
	defaultQueueSize = 64
)

// Selector accepts a selection; the orchestrator satisfies it.
type Selector interface {
	Select(ctx context.Context, candidates []media.Candidate, batchMode bool, options subtitler.SubmissionOptions) error
}

// Options configure a Watcher.
type Options struct {
	Debounce  time.Duration
	QueueSize int
	// Submission is sent with every dispatched file.
	Submission subtitler.SubmissionOptions
	Logger     *slog.Logger
}

// Watcher feeds new files in a directory to a Selector.
type Watcher struct {
	dir      string
	selector Selector
	opts     Options
	logger   *slog.Logger
	lock     *flock.Flock

	queue chan string
	idle  chan struct{}

	mu         sync.Mutex
	debouncers map[string]func(func())
	seen       map[string]struct{}
}

// New prepares a watcher for dir. The directory must exist.
func New(dir string, selector Selector, opts Options) (*Watcher, error) {
	if selector == nil {
		return nil, errors.New("watch requires a selector")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "watch", "stat", "Watch directory unavailable", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrConfiguration, "watch", "stat", abs+" is not a directory", nil)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		dir:        abs,
		selector:   selector,
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "watch"),
		lock:       flock.New(filepath.Join(abs, LockFileName)),
		queue:      make(chan string, opts.QueueSize),
		idle:       make(chan struct{}, 1),
		debouncers: make(map[string]func(func())),
		seen:       make(map[string]struct{}),
	}, nil
}

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Idle tells the dispatcher the orchestrator finished its batch. It never
// blocks; wire it to the presenter's batch-complete callback.
func (w *Watcher) Idle() {
	select {
	case w.idle <- struct{}{}:
	default:
	}
}

// Run watches until ctx is cancelled. It returns an error immediately when
// another watcher holds the directory lock.
func (w *Watcher) Run(ctx context.Context) error {
	ok, err := w.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire watch lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrConfiguration, "watch", "lock",
			"another watcher is already running for "+w.dir, nil)
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("failed to release watch lock", logging.Error(err))
		}
		_ = os.Remove(w.lock.Path())
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("add watch path: %w", err)
	}

	w.logger.Info("watching directory",
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.opts.Debounce),
		logging.Int("queue_size", w.opts.QueueSize),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer fsw.Close()
		return w.observe(gctx, fsw)
	})
	group.Go(func() error {
		return w.dispatch(gctx)
	})
	err = group.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *Watcher) observe(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			w.handle(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logging.WarnWithContext(w.logger, "watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "some file events may have been missed"),
			)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if ignored(path) {
		return
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.forget(path)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.settle(path)
	}
}

// settle (re)starts the quiet-period timer for path.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, done := w.seen[path]; done {
		return
	}
	debounced, ok := w.debouncers[path]
	if !ok {
		debounced = debounce.New(w.opts.Debounce)
		w.debouncers[path] = debounced
	}
	debounced(func() { w.enqueue(path) })
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if debounced, ok := w.debouncers[path]; ok {
		// replacing the pending call with a no-op cancels it
		debounced(func() {})
		delete(w.debouncers, path)
	}
	delete(w.seen, path)
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	delete(w.debouncers, path)
	if _, done := w.seen[path]; done {
		w.mu.Unlock()
		return
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		w.mu.Unlock()
		return
	}
	w.seen[path] = struct{}{}
	w.mu.Unlock()

	select {
	case w.queue <- path:
		w.logger.Info("file queued", logging.File(path), logging.Int(logging.FieldRemaining, len(w.queue)))
	default:
		w.mu.Lock()
		delete(w.seen, path)
		w.mu.Unlock()
		logging.WarnWithContext(w.logger, "watch backlog full; file dropped", "watch_backlog_full",
			logging.File(path),
			logging.String(logging.FieldErrorHint, "raise watch.queue_size or touch the file again later"),
		)
	}
}

func (w *Watcher) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-w.queue:
			if err := w.submit(ctx, path); err != nil {
				return err
			}
		}
	}
}

// submit hands path to the selector, waiting out busy periods. Only context
// cancellation is returned; per-file problems are logged.
func (w *Watcher) submit(ctx context.Context, path string) error {
	candidate, err := media.FromPath(path)
	if err != nil {
		logging.WarnWithContext(w.logger, "skipping watched file", "watch_file_skipped",
			logging.File(path),
			logging.ErrorKind(err),
			logging.Error(err),
		)
		return nil
	}
	for {
		err := w.selector.Select(ctx, []media.Candidate{candidate}, false, w.opts.Submission)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, batch.ErrBusy):
			w.logger.Debug("orchestrator busy; waiting", logging.File(path))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.idle:
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			logging.WarnWithContext(w.logger, "watched file not submitted", "watch_submit_rejected",
				logging.File(path),
				logging.ErrorKind(err),
				logging.Error(err),
			)
			return nil
		}
	}
}

// ignored filters hidden files, our lock, and editor/partial-download temp files.
func ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".part", ".crdownload", ".tmp", ".swp":
		return true
	}
	return false
}
