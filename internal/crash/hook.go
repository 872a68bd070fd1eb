package crash

import (
	"runtime"
	"sync"
)

// Handler receives uncaught failures on the goroutine that raised them.
type Handler interface {
	OnUncaughtFailure(g Goroutine, failure any)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(g Goroutine, failure any)

// OnUncaughtFailure implements Handler.
func (f HandlerFunc) OnUncaughtFailure(g Goroutine, failure any) { f(g, failure) }

// Hook is the global uncaught-failure hook the Interceptor installs itself on.
type Hook interface {
	// Install registers h and returns the handler it replaced, or nil.
	Install(h Handler) (previous Handler)

	// InvokePrevious re-dispatches a failure to a handler returned by Install.
	InvokePrevious(previous Handler, g Goroutine, failure any)
}

// Registry is a process-wide uncaught-failure hook. A panic recovered by
// Guard is handed to the installed handler; with no handler installed the
// panic is re-raised and the Go runtime terminates the process as usual.
type Registry struct {
	mu      sync.RWMutex
	handler Handler
}

// DefaultHook is the registry used by Guard, Go and the singleton Interceptor.
var DefaultHook = &Registry{}

// Install implements Hook.
func (r *Registry) Install(h Handler) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.handler
	r.handler = h
	return previous
}

// InvokePrevious implements Hook.
func (r *Registry) InvokePrevious(previous Handler, g Goroutine, failure any) {
	if previous != nil {
		previous.OnUncaughtFailure(g, failure)
	}
}

// Handler returns the currently installed handler, or nil.
func (r *Registry) Handler() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handler
}

// Dispatch delivers failure to the installed handler. The faulting goroutine
// never resumes application code: once the handler returns, the goroutine
// exits through runtime.Goexit.
func (r *Registry) Dispatch(g Goroutine, failure any) {
	h := r.Handler()
	if h == nil {
		panic(failure)
	}
	h.OnUncaughtFailure(g, failure)
	runtime.Goexit()
}

// Guard recovers a panic on the calling goroutine and dispatches it to r.
// It must be deferred directly:
//
//	defer registry.Guard()
func (r *Registry) Guard() {
	if v := recover(); v != nil {
		r.Dispatch(CurrentGoroutine(0), v)
	}
}

// Go runs fn on a new goroutine guarded by r.
func (r *Registry) Go(fn func()) {
	go func() {
		defer r.Guard()
		fn()
	}()
}

// Guard recovers a panic on the calling goroutine and dispatches it to
// DefaultHook. It must be deferred directly, typically as the first
// statement of main and of every long-lived goroutine.
func Guard() {
	if v := recover(); v != nil {
		DefaultHook.Dispatch(CurrentGoroutine(0), v)
	}
}

// Go runs fn on a new goroutine guarded by DefaultHook.
func Go(fn func()) {
	DefaultHook.Go(fn)
}
