package crash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeApp struct {
	info PackageInfo
	err  error
}

func (a fakeApp) PackageInfo() (PackageInfo, error) { return a.info, a.err }

var testApp = fakeApp{info: PackageInfo{Name: "demo", VersionName: "1.0", VersionCode: "1"}}

func staticCollector() Collector {
	env := fixedReport().Environment
	return CollectorFunc(func(_ context.Context, app AppContext) (EnvironmentSnapshot, error) {
		pkg, err := app.PackageInfo()
		if err != nil {
			return EnvironmentSnapshot{}, &MetadataError{Field: "app", Err: err}
		}
		snap := env
		snap.CPUABIs = append([]string(nil), env.CPUABIs...)
		snap.AppVersion, snap.AppBuild = pkg.VersionName, pkg.VersionCode
		return snap, nil
	})
}

// eventLog records the order of side effects across goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type harness struct {
	dir      string
	registry *Registry
	diag     *bytes.Buffer
	log      *eventLog
	killed   chan int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		dir:      t.TempDir(),
		registry: &Registry{},
		diag:     &bytes.Buffer{},
		log:      &eventLog{},
		killed:   make(chan int, 16),
	}
}

func (h *harness) interceptor(extra ...Option) *Interceptor {
	opts := []Option{
		WithHook(h.registry),
		WithReportWriter(NewReportWriter(
			WithRoot(h.dir),
			WithStorageProbe(alwaysAvailable),
			WithUniqueNames(true),
		)),
		WithCollector(staticCollector()),
		WithTerminator(TerminatorFunc(func(pid int) {
			h.log.add("kill")
			h.killed <- pid
		})),
		WithDiagnosticOutput(&lockedBuffer{buf: h.diag}),
	}
	return New(append(opts, extra...)...)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf *bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// fault runs fn on a goroutine guarded by r and waits for it to finish.
func fault(r *Registry, fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer r.Guard()
		fn()
	}()
	<-done
}

func TestInstance_IsSingleton(t *testing.T) {
	t.Parallel()
	assert.Same(t, Instance(), Instance())
}

func TestInit_NilContext(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	i := h.interceptor()

	err := i.Init(nil)
	assert.ErrorIs(t, err, ErrNilContext)
	assert.False(t, i.Installed())
	assert.Nil(t, h.registry.Handler())
}

func TestInit_OnlyOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	prior := HandlerFunc(func(Goroutine, any) {})
	h.registry.Install(prior)

	i := h.interceptor()
	require.NoError(t, i.Init(testApp))
	assert.True(t, i.Installed())

	err := i.Init(testApp)
	assert.ErrorIs(t, err, ErrAlreadyInstalled)

	st := i.state.Load()
	require.NotNil(t, st)
	assert.NotNil(t, st.previous, "previous handler chain must survive a second Init")
	assert.Same(t, i, h.registry.Handler())
}

func TestOnUncaughtFailure_ChainsToPreviousAfterWrite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	var seenFailure any
	h.registry.Install(HandlerFunc(func(_ Goroutine, failure any) {
		seenFailure = failure
		reports, err := ListReports(h.dir, DefaultSuffix)
		if err == nil {
			h.log.add("previous reports=%d", len(reports))
		}
	}))

	i := h.interceptor()
	require.NoError(t, i.Init(testApp))
	assert.Same(t, i, h.registry.Handler(), "global hook must point at the interceptor")

	fault(h.registry, func() { panic("custom exception") })

	assert.Equal(t, "custom exception", seenFailure)
	assert.Equal(t, []string{"previous reports=1"}, h.log.snapshot())
	assert.Empty(t, h.killed)

	_, data, err := LoadLatestReport(h.dir, DefaultSuffix)
	require.NoError(t, err)
	assert.Contains(t, string(data), "App Version: 1.0_1\n")
	assert.Contains(t, string(data), "panic: custom exception\n")
	assert.Contains(t, h.diag.String(), "custom exception")
}

func TestOnUncaughtFailure_NeverRaises(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []Option
	}{
		{
			name: "storage unavailable",
			opts: []Option{WithReportWriter(NewReportWriter(
				WithRoot(filepath.Join(os.TempDir(), "crashguard-absent-root")),
				WithStorageProbe(StorageProbeFunc(func(string) error { return ErrStorageUnavailable })),
			))},
		},
		{
			name: "io error",
			opts: []Option{WithReportWriter(NewReportWriter(
				WithRoot(filepath.Join(os.TempDir(), "crashguard-missing", "nested")),
				WithStorageProbe(alwaysAvailable),
			))},
		},
		{
			name: "metadata lookup error",
			opts: []Option{WithCollector(HostCollector{})},
		},
		{
			name: "collector panics",
			opts: []Option{WithCollector(CollectorFunc(func(context.Context, AppContext) (EnvironmentSnapshot, error) {
				panic("collector bug")
			}))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)

			calls := 0
			h.registry.Install(HandlerFunc(func(Goroutine, any) { calls++ }))

			i := h.interceptor(tt.opts...)
			app := AppContext(testApp)
			if tt.name == "metadata lookup error" {
				app = fakeApp{err: errors.New("package not found")}
			}
			require.NoError(t, i.Init(app))

			assert.NotPanics(t, func() {
				i.OnUncaughtFailure(CurrentGoroutine(0), "original")
			})
			assert.Equal(t, 1, calls, "previous handler must run exactly once")
			assert.Contains(t, h.diag.String(), "original")
		})
	}
}

func TestOnUncaughtFailure_TerminatesWithoutPrevious(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	i := h.interceptor(WithCollector(CollectorFunc(func(ctx context.Context, app AppContext) (EnvironmentSnapshot, error) {
		h.log.add("collect")
		return staticCollector().Collect(ctx, app)
	})))
	require.NoError(t, i.Init(testApp))

	fault(h.registry, func() { panic(errors.New("fatal")) })

	select {
	case pid := <-h.killed:
		assert.Equal(t, os.Getpid(), pid)
	case <-time.After(5 * time.Second):
		t.Fatal("terminator was not called")
	}
	assert.Equal(t, []string{"collect", "kill"}, h.log.snapshot())

	reports, err := ListReports(h.dir, DefaultSuffix)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestOnUncaughtFailure_TerminatesAfterFailedWrite(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	i := h.interceptor(WithReportWriter(NewReportWriter(
		WithRoot(h.dir),
		WithStorageProbe(StorageProbeFunc(func(string) error {
			h.log.add("probe")
			return errors.New("unmounted")
		})),
	)))
	require.NoError(t, i.Init(testApp))

	i.OnUncaughtFailure(CurrentGoroutine(0), "boom")

	assert.Equal(t, []string{"probe", "kill"}, h.log.snapshot())
	assert.Equal(t, os.Getpid(), <-h.killed)
}

func TestOnUncaughtFailure_ConcurrentFaultsRedispatchOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	const workers = 16
	var (
		mu      sync.Mutex
		perGID  = make(map[int64]int)
		total   int
		started = make(chan struct{})
	)
	h.registry.Install(HandlerFunc(func(g Goroutine, _ any) {
		mu.Lock()
		defer mu.Unlock()
		perGID[g.ID]++
		total++
	}))

	i := h.interceptor()
	require.NoError(t, i.Init(testApp))

	var eg errgroup.Group
	for n := 0; n < workers; n++ {
		n := n
		eg.Go(func() error {
			<-started
			fault(h.registry, func() { panic(fmt.Sprintf("worker %d", n)) })
			return nil
		})
	}
	close(started)
	require.NoError(t, eg.Wait())

	assert.Equal(t, workers, total)
	assert.Len(t, perGID, workers)
	for gid, n := range perGID {
		assert.Equal(t, 1, n, "goroutine %d re-dispatched %d times", gid, n)
	}
	assert.Empty(t, h.killed)

	reports, err := ListReports(h.dir, DefaultSuffix)
	require.NoError(t, err)
	require.Len(t, reports, workers)

	// Each report carries its own goroutine and an unmixed environment.
	goroutines := make(map[string]bool)
	for _, r := range reports {
		data, err := ReadReport(h.dir, r.Name)
		require.NoError(t, err)
		assert.Contains(t, string(data), "App Version: 1.0_1\n")
		assert.Contains(t, string(data), "CPU: [arm64-v8a, armeabi-v7a, armeabi]\n")
		for _, line := range strings.Split(string(data), "\n") {
			if strings.HasPrefix(line, "Goroutine: ") {
				goroutines[line] = true
			}
		}
	}
	assert.Len(t, goroutines, workers)
}

type recordingUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (u *recordingUploader) Upload(_ context.Context, path string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
	return u.err
}

func TestOnUncaughtFailure_Uploader(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	up := &recordingUploader{err: errors.New("offline")}

	h.registry.Install(HandlerFunc(func(Goroutine, any) {}))
	i := h.interceptor(WithUploader(up))
	require.NoError(t, i.Init(testApp))

	i.OnUncaughtFailure(CurrentGoroutine(0), "boom")

	require.Len(t, up.paths, 1)
	assert.Equal(t, h.dir, filepath.Dir(up.paths[0]))
}

func TestOnUncaughtFailure_NotInstalled(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	i := h.interceptor()

	i.OnUncaughtFailure(CurrentGoroutine(0), "early")

	assert.Equal(t, []string{"kill"}, h.log.snapshot())
	reports, err := ListReports(h.dir, DefaultSuffix)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestEnableRuntimeCrashOutput(t *testing.T) {
	// SetCrashOutput is process-wide, so this test is not parallel.
	h := newHarness(t)
	i := h.interceptor()

	path, stop, err := i.EnableRuntimeCrashOutput()
	require.NoError(t, err)
	assert.Equal(t, h.dir, filepath.Dir(path))
	_, err = os.Stat(path)
	require.NoError(t, err)

	stop()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "empty crash output file must be removed on stop")
}

func TestEnableRuntimeCrashOutput_StorageUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	i := h.interceptor(WithReportWriter(NewReportWriter(
		WithRoot(h.dir),
		WithStorageProbe(StorageProbeFunc(func(string) error { return errors.New("unmounted") })),
	)))

	_, _, err := i.EnableRuntimeCrashOutput()
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func logEntries(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestOnUncaughtFailure_LogLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		storage   StorageProbe
		wantMsg   string
		wantLevel string
	}{
		{"written", alwaysAvailable, "crash report written", "INFO"},
		{"failed", StorageProbeFunc(func(string) error { return errors.New("unmounted") }), "failed to write crash report", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			logs := &bytes.Buffer{}
			logger := slog.New(slog.NewJSONHandler(&lockedBuffer{buf: logs}, nil))

			h.registry.Install(HandlerFunc(func(Goroutine, any) {}))
			i := h.interceptor(
				WithLogger(logger),
				WithReportWriter(NewReportWriter(WithRoot(h.dir), WithStorageProbe(tt.storage))),
			)
			require.NoError(t, i.Init(testApp))

			i.OnUncaughtFailure(CurrentGoroutine(0), "boom")

			var found bool
			for _, e := range logEntries(t, logs.String()) {
				if e["msg"] == tt.wantMsg {
					found = true
					assert.Equal(t, tt.wantLevel, e["level"])
				}
			}
			assert.True(t, found, "missing %q log entry in %s", tt.wantMsg, logs.String())
		})
	}
}

func TestInit_LoggerReachesDefaultWriter(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	i := New(WithHook(&Registry{}))
	require.NoError(t, i.Init(testApp, WithLogger(logger)))
	assert.Same(t, logger, i.Writer().logger)

	custom := NewReportWriter(WithRoot(t.TempDir()))
	j := New(WithHook(&Registry{}), WithReportWriter(custom))
	require.NoError(t, j.Init(testApp, WithLogger(logger)))
	assert.Same(t, custom, j.Writer(), "an explicit writer is never replaced")
}
