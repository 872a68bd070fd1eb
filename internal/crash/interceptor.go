package crash

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCollectTimeout bounds environment collection during a crash.
const DefaultCollectTimeout = 2 * time.Second

// killGrace is how long ProcessTerminator waits for a delivered kill signal
// before falling back to os.Exit.
const killGrace = time.Second

// Terminator ends the process when no previous handler exists.
type Terminator interface {
	Kill(pid int)
}

// TerminatorFunc adapts a function to the Terminator interface.
type TerminatorFunc func(pid int)

// Kill implements Terminator.
func (f TerminatorFunc) Kill(pid int) { f(pid) }

// ProcessTerminator kills the process with the given pid. No deferred
// functions or exit hooks run.
type ProcessTerminator struct{}

// Kill implements Terminator.
func (ProcessTerminator) Kill(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		if err := p.Kill(); err == nil {
			time.Sleep(killGrace)
		}
	}
	os.Exit(2)
}

// Uploader ships a persisted report somewhere else. No implementation is
// provided; it is an extension point for callers.
type Uploader interface {
	Upload(ctx context.Context, path string) error
}

// installation is the state recorded by Init. It is written once and only
// read afterwards.
type installation struct {
	previous Handler
	app      AppContext
}

// Interceptor is the last-resort handler for uncaught failures. It persists
// a report for each failure and then re-dispatches to the previously
// installed handler, or terminates the process.
type Interceptor struct {
	mu    sync.Mutex
	state atomic.Pointer[installation]

	hook           Hook
	writer         *ReportWriter
	defaultWriter  bool
	collector      Collector
	terminator     Terminator
	uploader       Uploader
	logger         *slog.Logger
	diag           io.Writer
	collectTimeout time.Duration
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithHook replaces DefaultHook.
func WithHook(h Hook) Option {
	return func(i *Interceptor) { i.hook = h }
}

// WithReportWriter replaces the default ReportWriter.
func WithReportWriter(w *ReportWriter) Option {
	return func(i *Interceptor) {
		i.writer = w
		i.defaultWriter = false
	}
}

// WithCollector replaces HostCollector.
func WithCollector(c Collector) Option {
	return func(i *Interceptor) { i.collector = c }
}

// WithTerminator replaces ProcessTerminator.
func WithTerminator(t Terminator) Option {
	return func(i *Interceptor) { i.terminator = t }
}

// WithUploader registers an Uploader called after each successful write.
func WithUploader(u Uploader) Option {
	return func(i *Interceptor) { i.uploader = u }
}

// WithLogger sets the logger for capture outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) { i.logger = logger }
}

// WithDiagnosticOutput sets where the original failure is printed
// (default os.Stderr).
func WithDiagnosticOutput(w io.Writer) Option {
	return func(i *Interceptor) { i.diag = w }
}

// WithCollectTimeout bounds environment collection.
func WithCollectTimeout(d time.Duration) Option {
	return func(i *Interceptor) { i.collectTimeout = d }
}

// New creates an Interceptor that is not yet installed.
func New(opts ...Option) *Interceptor {
	i := &Interceptor{
		hook:           DefaultHook,
		collector:      HostCollector{},
		terminator:     ProcessTerminator{},
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		diag:           os.Stderr,
		collectTimeout: DefaultCollectTimeout,
	}
	i.apply(opts)
	return i
}

func (i *Interceptor) apply(opts []Option) {
	for _, opt := range opts {
		opt(i)
	}
	// The default writer follows the current logger, so a WithLogger passed
	// to Init after New also receives retention warnings.
	if i.writer == nil || i.defaultWriter {
		i.writer = NewReportWriter(WithWriterLogger(i.logger))
		i.defaultWriter = true
	}
	if i.collectTimeout <= 0 {
		i.collectTimeout = DefaultCollectTimeout
	}
}

var instance = New()

// Instance returns the process-wide Interceptor.
func Instance() *Interceptor {
	return instance
}

// Init installs i as the global uncaught-failure handler, remembering the
// handler it replaces. opts are applied before installation. Init succeeds
// once; later calls return ErrAlreadyInstalled and leave the recorded
// previous handler untouched.
func (i *Interceptor) Init(app AppContext, opts ...Option) error {
	if app == nil {
		return ErrNilContext
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state.Load() != nil {
		return ErrAlreadyInstalled
	}
	i.apply(opts)

	previous := i.hook.Install(i)
	i.state.Store(&installation{previous: previous, app: app})

	i.logger.Debug("crash interceptor installed",
		"report_dir", i.writer.Root(),
		"chained", previous != nil,
	)
	return nil
}

// Installed reports whether Init has succeeded.
func (i *Interceptor) Installed() bool {
	return i.state.Load() != nil
}

// Writer returns the ReportWriter reports are persisted with.
func (i *Interceptor) Writer() *ReportWriter {
	return i.writer
}

// OnUncaughtFailure implements Handler. It persists a report, prints the
// failure to the diagnostic stream and then either re-dispatches to the
// previous handler or terminates the process. Nothing raised while building
// or writing the report escapes.
func (i *Interceptor) OnUncaughtFailure(g Goroutine, failure any) {
	st := i.state.Load()
	record := NewFailureRecord(g, failure)

	path, err := i.capture(st, record)
	if err != nil {
		i.logger.Error("failed to write crash report",
			"error", err,
			"goroutine", g.ID,
		)
	} else {
		i.logger.Info("crash report written",
			"path", path,
			"goroutine", g.ID,
		)
	}

	i.emit(record)

	if st != nil && st.previous != nil {
		i.hook.InvokePrevious(st.previous, g, failure)
		return
	}
	i.terminator.Kill(os.Getpid())
}

func (i *Interceptor) capture(st *installation, record FailureRecord) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			path, err = "", fmt.Errorf("capturing crash report panicked: %v", r)
		}
	}()

	if st == nil {
		return "", &MetadataError{Field: "app", Err: ErrNilContext}
	}

	ctx, cancel := context.WithTimeout(context.Background(), i.collectTimeout)
	defer cancel()

	env, err := i.collector.Collect(ctx, st.app)
	if err != nil {
		return "", err
	}

	path, err = i.writer.Write(record, env)
	if err != nil {
		return "", err
	}

	if i.uploader != nil {
		if upErr := i.uploader.Upload(ctx, path); upErr != nil {
			i.logger.Warn("failed to upload crash report", "path", path, "error", upErr)
		}
	}
	return path, nil
}

// emit prints the original failure. It is best effort.
func (i *Interceptor) emit(record FailureRecord) {
	defer func() { _ = recover() }()
	_, _ = fmt.Fprintf(i.diag, "uncaught failure on goroutine %d: %s", record.GoroutineID, record.String())
}

// EnableRuntimeCrashOutput mirrors unrecoverable runtime fatal errors, which
// never reach a Handler, into a file under the report root. The returned
// stop function detaches the file and removes it if nothing was written.
func (i *Interceptor) EnableRuntimeCrashOutput() (path string, stop func(), err error) {
	if err := i.writer.Available(); err != nil {
		return "", nil, err
	}
	root := i.writer.Root()

	name := fmt.Sprintf("runtime-%d-%s.crash", os.Getpid(), time.Now().Format("20060102T150405"))
	path = filepath.Join(root, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, reportPerm)
	if err != nil {
		return "", nil, &IOError{Op: "create", Path: path, Err: err}
	}
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, &IOError{Op: "attach", Path: path, Err: err}
	}
	// SetCrashOutput duplicates the descriptor.
	_ = f.Close()

	stop = func() {
		_ = debug.SetCrashOutput(nil, debug.CrashOptions{})
		if info, err := os.Stat(path); err == nil && info.Size() == 0 {
			_ = os.Remove(path)
		}
	}
	return path, stop, nil
}
