package crash

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

// DefaultSuffix is appended to every report file name.
const DefaultSuffix = ".trace"

const reportPerm os.FileMode = 0o600

// MaxReportSize caps how much ReadReport loads. Reports are a few KiB; a
// larger file under the root is not one of ours.
const MaxReportSize int64 = 1 << 20

// ReportWriter persists crash reports under a fixed root directory.
// It holds no mutable state, so concurrent calls to Write are safe.
type ReportWriter struct {
	root        string
	suffix      string
	uniqueNames bool
	maxFiles    int
	probe       StorageProbe
	now         func() time.Time
	logger      *slog.Logger
}

// WriterOption configures a ReportWriter.
type WriterOption func(*ReportWriter)

// WithRoot sets the storage root directory.
func WithRoot(dir string) WriterOption {
	return func(w *ReportWriter) { w.root = dir }
}

// WithSuffix sets the report file suffix, including the leading dot.
func WithSuffix(suffix string) WriterOption {
	return func(w *ReportWriter) { w.suffix = suffix }
}

// WithUniqueNames appends a short random id to each file stem so two
// failures within the same second do not overwrite each other.
func WithUniqueNames(enabled bool) WriterOption {
	return func(w *ReportWriter) { w.uniqueNames = enabled }
}

// WithMaxFiles keeps at most n reports, deleting the oldest after each
// write. Zero or negative disables retention.
func WithMaxFiles(n int) WriterOption {
	return func(w *ReportWriter) { w.maxFiles = n }
}

// WithStorageProbe replaces the default MountProbe.
func WithStorageProbe(p StorageProbe) WriterOption {
	return func(w *ReportWriter) { w.probe = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) WriterOption {
	return func(w *ReportWriter) { w.now = now }
}

// WithWriterLogger sets the logger used for retention warnings.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *ReportWriter) { w.logger = logger }
}

// DefaultRoot returns the storage root used when none is configured:
// $HOME/crashguard, or crashguard under the temp dir when there is no home.
func DefaultRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "crashguard")
	}
	return filepath.Join(os.TempDir(), "crashguard")
}

// NewReportWriter creates a report writer.
func NewReportWriter(opts ...WriterOption) *ReportWriter {
	w := &ReportWriter{
		suffix: DefaultSuffix,
		probe:  MountProbe{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.root == "" {
		w.root = DefaultRoot()
	}
	if w.suffix == "" {
		w.suffix = DefaultSuffix
	}
	return w
}

// Root returns the storage root directory.
func (w *ReportWriter) Root() string { return w.root }

// Suffix returns the report file suffix.
func (w *ReportWriter) Suffix() string { return w.suffix }

// Available runs the storage probe against the root.
func (w *ReportWriter) Available() error {
	if err := w.probe.Available(w.root); err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return err
	}
	return nil
}

// Write formats failure and env into a CrashReport stamped with the current
// time and persists it. It returns ErrStorageUnavailable without touching
// the filesystem when the probe rejects the root, and an *IOError when the
// file cannot be written. There are no retries.
func (w *ReportWriter) Write(failure FailureRecord, env EnvironmentSnapshot) (string, error) {
	if err := w.Available(); err != nil {
		return "", err
	}

	report := CrashReport{
		Timestamp:   w.now(),
		Environment: env,
		Failure:     failure,
	}
	path := filepath.Join(w.root, w.fileName(report.Timestamp))

	if err := writeReportFile(path, FormatReport(report), reportPerm); err != nil {
		return "", err
	}

	if w.maxFiles > 0 {
		w.cleanupOldReports()
	}
	return path, nil
}

func (w *ReportWriter) fileName(ts time.Time) string {
	stem := ts.Format(fileStemLayout)
	if w.uniqueNames {
		stem += "-" + uuid.NewString()[:8]
	}
	return stem + w.suffix
}

// cleanupOldReports removes reports exceeding maxFiles, oldest first.
func (w *ReportWriter) cleanupOldReports() {
	reports, err := ListReports(w.root, w.suffix)
	if err != nil {
		return
	}
	for len(reports) > w.maxFiles {
		if err := os.Remove(reports[0].Path); err != nil && w.logger != nil {
			w.logger.Warn("failed to remove old crash report",
				"path", reports[0].Path,
				"error", err,
			)
		}
		reports = reports[1:]
	}
}

// ReportInfo describes a persisted report file.
type ReportInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// ListReports returns the reports under root, oldest first.
func ListReports(root, suffix string) ([]ReportInfo, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading report dir: %w", err)
	}

	var reports []ReportInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		reports = append(reports, ReportInfo{
			Name:    e.Name(),
			Path:    filepath.Join(root, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(reports, func(i, j int) bool {
		if reports[i].ModTime.Equal(reports[j].ModTime) {
			return reports[i].Name < reports[j].Name
		}
		return reports[i].ModTime.Before(reports[j].ModTime)
	})
	return reports, nil
}

// LoadLatestReport returns the newest report under root and its contents.
func LoadLatestReport(root, suffix string) (ReportInfo, []byte, error) {
	reports, err := ListReports(root, suffix)
	if err != nil {
		return ReportInfo{}, nil, err
	}
	if len(reports) == 0 {
		return ReportInfo{}, nil, fmt.Errorf("no crash reports found in %s", root)
	}
	latest := reports[len(reports)-1]
	data, err := ReadReport(root, latest.Name)
	if err != nil {
		return ReportInfo{}, nil, err
	}
	return latest, data, nil
}

// ReadReport reads the named report, refusing names that escape root and
// files larger than MaxReportSize.
func ReadReport(root, name string) ([]byte, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("invalid report name: %q", name)
	}
	data, err := fsutil.ReadFileScopedLimit(filepath.Join(root, name), MaxReportSize)
	if err != nil {
		return nil, fmt.Errorf("reading crash report: %w", err)
	}
	return data, nil
}
