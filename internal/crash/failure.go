package crash

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// maxStackDepth bounds the number of program counters captured per failure.
const maxStackDepth = 64

// Goroutine identifies the goroutine a failure was recovered on.
type Goroutine struct {
	ID int64

	// Stack holds the program counters captured where the panic was
	// recovered. It may be empty, in which case the stack is captured
	// when the FailureRecord is built.
	Stack []uintptr
}

// CurrentGoroutine returns the calling goroutine with its current stack.
// skip is the number of additional caller frames to omit.
func CurrentGoroutine(skip int) Goroutine {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return Goroutine{ID: goroutineID(), Stack: pcs[:n]}
}

// goroutineID parses the numeric id out of the "goroutine N [state]:" header
// that runtime.Stack prints. It returns 0 if the header cannot be parsed.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}
	id, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// StackFrame is one line of a stack trace.
type StackFrame struct {
	Symbol   string
	Location string
}

// FailureRecord describes one uncaught failure. It is built once at
// interception time and never modified.
type FailureRecord struct {
	GoroutineID int64
	Kind        string
	Message     string
	Frames      []StackFrame
}

// NewFailureRecord captures the failure value recovered on g.
//
// Kind is the dynamic type of the value, except for plain string panics
// which are tagged "panic". When the captured stack contains the runtime
// panic machinery, frames start at the first non-runtime function: the
// panic call itself, or the function whose operation raised a runtime error.
func NewFailureRecord(g Goroutine, value any) FailureRecord {
	pcs := g.Stack
	if len(pcs) == 0 {
		pcs = CurrentGoroutine(1).Stack
	}
	return FailureRecord{
		GoroutineID: g.ID,
		Kind:        failureKind(value),
		Message:     fmt.Sprint(value),
		Frames:      framesFrom(pcs),
	}
}

func failureKind(value any) string {
	if _, ok := value.(string); ok {
		return "panic"
	}
	return fmt.Sprintf("%T", value)
}

func framesFrom(pcs []uintptr) []StackFrame {
	if len(pcs) == 0 {
		return nil
	}

	var frames []StackFrame
	iter := runtime.CallersFrames(pcs)
	for {
		f, more := iter.Next()
		if f.Function != "" || f.File != "" {
			frames = append(frames, StackFrame{
				Symbol:   f.Function,
				Location: f.File + ":" + strconv.Itoa(f.Line),
			})
		}
		if !more {
			break
		}
	}

	// Drop everything up to and including runtime.gopanic, then the runtime
	// helpers that raised a runtime error (goPanicIndex, sigpanic,
	// mapassign...), so the trace begins in the code that failed.
	for i, f := range frames {
		if f.Symbol == "runtime.gopanic" {
			return trimRuntimeFrames(frames[i+1:])
		}
	}
	return frames
}

func trimRuntimeFrames(frames []StackFrame) []StackFrame {
	for i, f := range frames {
		if !isRuntimeFrame(f.Symbol) {
			return frames[i:]
		}
	}
	return frames
}

// isRuntimeFrame reports whether symbol belongs to the runtime, including
// its internal packages (swiss map assignment lives in internal/runtime/maps).
func isRuntimeFrame(symbol string) bool {
	return strings.HasPrefix(symbol, "runtime.") || strings.HasPrefix(symbol, "internal/runtime/")
}

// String renders the record the way a stack trace dump reads.
func (r FailureRecord) String() string {
	var b strings.Builder
	writeFailure(&b, r)
	return b.String()
}

func writeFailure(b *strings.Builder, r FailureRecord) {
	b.WriteString(r.Kind)
	if r.Message != "" {
		b.WriteString(": ")
		b.WriteString(r.Message)
	}
	b.WriteByte('\n')
	for _, f := range r.Frames {
		fmt.Fprintf(b, "\tat %s(%s)\n", f.Symbol, f.Location)
	}
}
