package crash

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned when the report root is not mounted or accessible.
	ErrStorageUnavailable = errors.New("crash report storage unavailable")

	// ErrMetadataLookup matches any *MetadataError.
	ErrMetadataLookup = errors.New("environment metadata lookup failed")

	// ErrIO matches any *IOError.
	ErrIO = errors.New("crash report i/o failed")

	// ErrNilContext is returned by Init when no application context is supplied.
	ErrNilContext = errors.New("crash: nil application context")

	// ErrAlreadyInstalled is returned by Init on every call after the first.
	ErrAlreadyInstalled = errors.New("crash: interceptor already installed")
)

// MetadataError reports a failure to read application or host metadata.
type MetadataError struct {
	Field string
	Err   error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("reading %s metadata: %v", e.Field, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMetadataLookup) match.
func (e *MetadataError) Is(target error) bool { return target == ErrMetadataLookup }

// IOError reports a failed create, write, flush or close of a report file.
// Bytes already written are left in place.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s crash report %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrIO) match.
func (e *IOError) Is(target error) bool { return target == ErrIO }
