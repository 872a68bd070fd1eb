// Package crash installs a process-wide last-resort handler for panics that
// escape application code, persists a plain-text report for each one, and
// then hands the failure back to whatever handler was registered before it
// (or terminates the process when there was none).
//
// The package is made of three parts:
//
//   - Registry: the process-wide uncaught-failure hook. Goroutines opt in
//     with defer Guard() or by being started through Go(fn); a recovered
//     panic is delivered, on the faulting goroutine, to the installed Handler.
//
//   - ReportWriter: formats a FailureRecord plus an EnvironmentSnapshot into
//     a ".trace" file under a fixed storage root.
//
//   - Interceptor: the singleton Handler. Instance() returns it and Init()
//     installs it exactly once, early in process startup.
//
// Typical wiring:
//
//	func main() {
//	    if err := crash.Instance().Init(crash.BuildInfoContext{Version: version}); err != nil {
//	        log.Fatal(err)
//	    }
//	    defer crash.Guard()
//	    crash.Go(worker)
//	    ...
//	}
package crash
