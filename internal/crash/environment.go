package crash

import (
	"context"
	"errors"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/host"
)

const unknown = "unknown"

// EnvironmentSnapshot is the host and application metadata written into a report.
type EnvironmentSnapshot struct {
	AppVersion   string
	AppBuild     string
	OSVersion    string
	OSSDKLevel   string
	DeviceVendor string
	DeviceModel  string
	CPUABIs      []string
}

// PackageInfo is the application metadata exposed by an AppContext.
type PackageInfo struct {
	Name        string
	VersionName string
	VersionCode string
}

// AppContext is the opaque application handle supplied to Init. It is only
// used to source version metadata for reports.
type AppContext interface {
	PackageInfo() (PackageInfo, error)
}

var errNoBuildInfo = errors.New("no build info embedded in binary")

// BuildInfoContext sources package metadata from the binary's embedded build
// info. Version and Build override the embedded values when set, which is how
// release builds inject ldflags values.
type BuildInfoContext struct {
	Version string
	Build   string
}

// PackageInfo implements AppContext.
func (c BuildInfoContext) PackageInfo() (PackageInfo, error) {
	info := PackageInfo{VersionName: c.Version, VersionCode: c.Build}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		if c.Version == "" {
			return PackageInfo{}, errNoBuildInfo
		}
		return info, nil
	}

	info.Name = bi.Main.Path
	if info.VersionName == "" {
		info.VersionName = bi.Main.Version
	}
	if info.VersionCode == "" {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && s.Value != "" {
				info.VersionCode = shortRevision(s.Value)
				break
			}
		}
	}
	if info.VersionCode == "" {
		info.VersionCode = bi.GoVersion
	}
	return info, nil
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// Collector gathers an EnvironmentSnapshot. Implementations must not cache
// results between calls.
type Collector interface {
	Collect(ctx context.Context, app AppContext) (EnvironmentSnapshot, error)
}

// CollectorFunc adapts a function to the Collector interface.
type CollectorFunc func(ctx context.Context, app AppContext) (EnvironmentSnapshot, error)

// Collect implements Collector.
func (f CollectorFunc) Collect(ctx context.Context, app AppContext) (EnvironmentSnapshot, error) {
	return f(ctx, app)
}

// HostCollector reads application metadata from the AppContext and host
// metadata from the operating system. Only the application lookup is fatal;
// host fields fall back to "unknown".
type HostCollector struct{}

// Collect implements Collector.
func (HostCollector) Collect(ctx context.Context, app AppContext) (EnvironmentSnapshot, error) {
	if app == nil {
		return EnvironmentSnapshot{}, &MetadataError{Field: "app", Err: ErrNilContext}
	}
	pkg, err := app.PackageInfo()
	if err != nil {
		return EnvironmentSnapshot{}, &MetadataError{Field: "app", Err: err}
	}

	env := EnvironmentSnapshot{
		AppVersion: pkg.VersionName,
		AppBuild:   pkg.VersionCode,
		OSVersion:  runtime.GOOS,
		OSSDKLevel: unknown,
		CPUABIs:    cpuABIs(runtime.GOARCH),
	}

	hostname := ""
	if hi, err := host.InfoWithContext(ctx); err == nil {
		hostname = hi.Hostname
		if v := strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion); v != "" {
			env.OSVersion = v
		}
		if hi.KernelVersion != "" {
			env.OSSDKLevel = hi.KernelVersion
		}
	}

	env.DeviceVendor, env.DeviceModel = lookupProduct(ctx)
	if env.DeviceModel == unknown && hostname != "" {
		env.DeviceModel = hostname
	}
	return env, nil
}

type product struct {
	vendor string
	model  string
}

// lookupProduct reads the DMI product vendor and name. ghw has no context
// support, so the lookup runs on its own goroutine and is abandoned when ctx
// expires.
func lookupProduct(ctx context.Context) (vendor, model string) {
	done := make(chan product, 1)
	go func() {
		p := product{vendor: unknown, model: unknown}
		defer func() {
			_ = recover()
			done <- p
		}()
		info, err := ghw.Product()
		if err != nil || info == nil {
			return
		}
		if v := strings.TrimSpace(info.Vendor); v != "" && !strings.EqualFold(v, unknown) {
			p.vendor = v
		}
		if n := strings.TrimSpace(info.Name); n != "" && !strings.EqualFold(n, unknown) {
			p.model = n
		}
	}()

	select {
	case p := <-done:
		return p.vendor, p.model
	case <-ctx.Done():
		return unknown, unknown
	}
}

// compatibleArchs lists, per GOARCH, the instruction sets the host can also
// execute, most preferred first.
var compatibleArchs = map[string][]string{
	"amd64":    {"386"},
	"arm64":    {"arm"},
	"mips64":   {"mips"},
	"mips64le": {"mipsle"},
}

func cpuABIs(goarch string) []string {
	abis := []string{goarch}
	return append(abis, compatibleArchs[goarch]...)
}
