package compiler

import (
	"errors"
	"fmt"

	"github.com/gogpu/cgvshader"
)

// IncompatibleEnvironmentError reports that an Environment was attached to
// a Context whose compatibility hash disagrees with it.
type IncompatibleEnvironmentError struct {
	ContextHash     uint64
	EnvironmentHash uint64
}

func (e *IncompatibleEnvironmentError) Error() string {
	return fmt.Sprintf("incompatible environment: context hash %#x != environment hash %#x", e.ContextHash, e.EnvironmentHash)
}

// CompilationError reports a failure from the underlying compiler,
// preserving its diagnostic text and, where known, the offending virtual
// path.
type CompilationError struct {
	Path    string
	Message string
	Err     error
}

func (e *CompilationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// InvalidTargetError reports that a LinkedComposite was asked to emit
// code for a Target it was not built for.
type InvalidTargetError struct {
	Built     cgvshader.Target
	Requested cgvshader.Target
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target: linked composite was built for %s, asked to emit %s", e.Built, e.Requested)
}

// ErrEntryPointNotFound is returned (wrapped) when a LinkedComposite is
// asked to emit a named entry point it does not contain.
var ErrEntryPointNotFound = errors.New("compiler: entry point not found")

// ErrContextClosed is returned by any Context method called after
// FinishEnvironment.
var ErrContextClosed = errors.New("compiler: context already finished")

// ErrNoEnvironment is returned by operations that require an attached
// Environment when none is attached.
var ErrNoEnvironment = errors.New("compiler: no environment attached")

// ErrModuleNotFound is returned when a Composite references a module path
// not present in the Context's attached Environment.
var ErrModuleNotFound = errors.New("compiler: module not found in environment")
