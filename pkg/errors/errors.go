package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which startup step produced the error
type Phase string

const (
	PhaseLocate    Phase = "locate"    // finding the game artifact
	PhasePatch     Phase = "patch"     // rewriting the entrypoint class
	PhaseDispatch  Phase = "dispatch"  // running initializer extensions
	PhaseLaunch    Phase = "launch"    // resolving and running the entrypoint
	PhaseClasspath Phase = "classpath" // building the class path
	PhaseDiscover  Phase = "discover"  // reading mod manifests
)

// Kind categorizes the error
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindInvocation    Kind = "invocation"
	KindLaunch        Kind = "launch"
	KindNotFound      Kind = "not_found"
	KindInvalidData   Kind = "invalid_data"
	KindUnsupported   Kind = "unsupported"
)

// Error is the structured error type used throughout the loader
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches any phase.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return (t.Phase == "" || e.Phase == t.Phase) && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location the error refers to (class, method, file)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Configuration creates a configuration error
func Configuration(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindConfiguration, Detail: detail}
}

// Launch wraps a failure to resolve or start the entrypoint
func Launch(cause error) *Error {
	return &Error{Phase: PhaseLaunch, Kind: KindLaunch, Detail: "Failed to start the game", Cause: cause}
}

// Invocation wraps an error raised by running game code
func Invocation(cause error) *Error {
	return &Error{Phase: PhaseLaunch, Kind: KindInvocation, Detail: "The game has crashed!", Cause: cause}
}

// NotFound creates a not found error
func NotFound(phase Phase, what string) *Error {
	return &Error{Phase: phase, Kind: KindNotFound, Detail: what}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{Phase: phase, Kind: KindUnsupported, Detail: what}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidData, Path: path, Detail: detail}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HasKind reports whether any *Error in err's chain has the given kind.
func HasKind(err error, kind Kind) bool {
	return stderrors.Is(err, &Error{Kind: kind})
}
