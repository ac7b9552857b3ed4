// Package compiler implements the stateful front-end over the vendored
// WGSL compiler (cgvshader, ir, wgsl, spirv): it loads modules, composites
// them, links them, and emits target-specific code.
//
// A Context is single-threaded: callers must not invoke its methods
// concurrently from multiple goroutines. The vendored compiler itself is
// modeled as a process-wide, non-reentrant global session — every call
// that crosses into it acquires globalSessionMu for the duration of that
// call only, matching the real compiler it stands in for, which exposes a
// single non-reentrant handle per process.
package compiler

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/gogpu/cgvshader"
	"github.com/gogpu/cgvshader/environment"
	"github.com/gogpu/cgvshader/ir"
	"github.com/gogpu/cgvshader/spirv"
)

var log = logrus.WithField("component", "compiler")

var (
	// globalSessionMu serializes every call that enters the vendored
	// compiler, modeling its single process-wide, non-reentrant handle.
	globalSessionMu sync.Mutex

	// syntheticPathCounter backs Context.synthesizePath, guaranteeing no
	// collision between synthesized virtual paths within a process.
	syntheticPathCounter uint64
)

func withGlobalSession[T any](fn func() (T, error)) (T, error) {
	globalSessionMu.Lock()
	defer globalSessionMu.Unlock()
	return fn()
}

// Builder configures a Context before it is built. Zero value is not
// usable; start from NewBuilder.
type Builder struct {
	target      cgvshader.Target
	searchPaths []string
	profileName string
	compat      CompatOptions
}

// NewBuilder starts a Builder for the given Target.
func NewBuilder(target cgvshader.Target) *Builder {
	return &Builder{target: target, compat: DefaultCompatOptions()}
}

// WithSearchPaths records the module search paths the Context's session
// should resolve relative includes against.
func (b *Builder) WithSearchPaths(paths ...string) *Builder {
	b.searchPaths = append([]string(nil), paths...)
	return b
}

// WithProfileName records a profile name for the session (forwarded to
// diagnostics; does not affect the compatibility hash).
func (b *Builder) WithProfileName(name string) *Builder {
	b.profileName = name
	return b
}

// WithCompatOptions sets the compat-relevant and cosmetic switches used to
// compute the Context's compatibility hash.
func (b *Builder) WithCompatOptions(opts CompatOptions) *Builder {
	b.compat = opts
	return b
}

// Build constructs the Context.
func (b *Builder) Build() (*Context, error) {
	return &Context{
		target:      b.target,
		searchPaths: append([]string(nil), b.searchPaths...),
		profileName: b.profileName,
		compat:      b.compat,
		compatHash:  b.compat.compatHash(),
	}, nil
}

// Context is a stateful session over the vendored compiler, configured
// for one Target. See the package doc for its concurrency contract.
type Context struct {
	target      cgvshader.Target
	searchPaths []string
	profileName string
	compat      CompatOptions
	compatHash  uint64
	env         *environment.Environment
	closed      bool
}

// Target reports the Target this Context is configured for.
func (c *Context) Target() cgvshader.Target {
	return c.target
}

// CompatHash reports the Context's compatibility hash.
func (c *Context) CompatHash() uint64 {
	return c.compatHash
}

// Environment reports the currently attached Environment, or nil.
func (c *Context) Environment() *environment.Environment {
	return c.env
}

func (c *Context) synthesizePath() string {
	n := atomic.AddUint64(&syntheticPathCounter, 1)
	return fmt.Sprintf("_generated/module_%d.wgsl", n)
}

// parseLowerValidate runs the vendored compiler's front end over source,
// under the global session lock, and wraps a parse or lowering failure as
// a CompilationError carrying path. Validation failures are logged as
// warnings rather than treated as fatal: a module the validator rejects
// is still returned, and no CompilationError is produced for it.
func parseLowerValidate(path, source string) (*ir.Module, error) {
	return withGlobalSession(func() (*ir.Module, error) {
		ast, err := cgvshader.Parse(source)
		if err != nil {
			return nil, &CompilationError{Path: path, Message: err.Error(), Err: err}
		}
		module, err := cgvshader.LowerWithSource(ast, source)
		if err != nil {
			return nil, &CompilationError{Path: path, Message: err.Error(), Err: err}
		}
		validationErrs, err := cgvshader.Validate(module)
		if err != nil {
			return nil, &CompilationError{Path: path, Message: err.Error(), Err: err}
		}
		for _, ve := range validationErrs {
			log.WithField("path", path).Warnf("validation: %s", ve.Error())
		}
		return module, nil
	})
}

// CompileFromSource compiles raw source text at the given virtual path.
// If virtualPath is empty, the Context synthesizes a unique one using a
// monotonic per-process counter. The result is SourceCode-form: further
// front-end work (parsing, lowering, validation) runs lazily whenever the
// module is linked into a Composite.
func (c *Context) CompileFromSource(source, virtualPath string) (environment.Module, error) {
	if c.closed {
		return environment.Module{}, ErrContextClosed
	}
	if virtualPath == "" {
		virtualPath = c.synthesizePath()
	}
	if _, err := parseLowerValidate(virtualPath, source); err != nil {
		return environment.Module{}, err
	}
	return environment.Module{Path: virtualPath, Form: environment.SourceCode, Data: []byte(source)}, nil
}

// LoadModuleFromDisk reads the file at filepath and delegates it to the
// vendored compiler session for a full parse/lower/validate pass. On
// success the module is wrapped in IR form, marking it as validated once;
// composite-linking and ReplaceEnvironment validate it again like any
// other module.
func (c *Context) LoadModuleFromDisk(filepath string) (environment.Module, error) {
	if c.closed {
		return environment.Module{}, ErrContextClosed
	}
	source, err := os.ReadFile(filepath)
	if err != nil {
		return environment.Module{}, &CompilationError{Path: filepath, Message: err.Error(), Err: err}
	}
	virtualPath := toVirtualPath(filepath)
	if _, err := parseLowerValidate(virtualPath, string(source)); err != nil {
		return environment.Module{}, err
	}
	return environment.Module{Path: virtualPath, Form: environment.IR, Data: source}, nil
}

// toVirtualPath maps a filesystem path to a slash-separated virtual path,
// independent of the host OS path separator.
func toVirtualPath(filepath string) string {
	return strings.TrimPrefix(strings.ReplaceAll(filepath, "\\", "/"), "/")
}

// LoadModuleAndStore loads the file at filepath and, if an Environment is
// attached, inserts the resulting module under the given storage form.
// This is the sanctioned way to populate an Environment meant to survive
// Context swaps — ad-hoc CompileFromSource results are not added
// automatically, by design.
func (c *Context) LoadModuleAndStore(filepath string, form environment.StorageForm) error {
	if c.closed {
		return ErrContextClosed
	}
	if c.env == nil {
		return ErrNoEnvironment
	}
	mod, err := c.LoadModuleFromDisk(filepath)
	if err != nil {
		return err
	}
	return c.env.AddModule(mod.Path, form, mod.Data)
}

// ReplaceEnvironment attaches env (or detaches the current one, if env is
// nil), returning whichever Environment was previously attached.
//
// The vendored compiler exposes no long-lived session handle — Parse,
// LowerWithSource, Validate, and GenerateSPIRV are pure functions with no
// internal module table to pollute — so there is no literal session to
// rebuild. The "fresh session, replay every module" discipline the
// original compiler needs is realized here as eagerly re-validating every
// module of the newly attached Environment, in path-sorted order (so that
// any module whose virtual path implies a directory prefix of another is
// validated first): this gives the same reproducibility guarantee, errors
// surface at attach time rather than on first later use, without a
// session object to reconstruct.
func (c *Context) ReplaceEnvironment(env *environment.Environment) (*environment.Environment, error) {
	if c.closed {
		return nil, ErrContextClosed
	}
	if env != nil && env.CompatHash() != c.compatHash {
		return nil, &IncompatibleEnvironmentError{ContextHash: c.compatHash, EnvironmentHash: env.CompatHash()}
	}
	if env != nil {
		paths := env.ModulePaths()
		sort.Strings(paths)
		for _, p := range paths {
			mod, _ := env.Module(p)
			if _, err := parseLowerValidate(p, string(mod.Data)); err != nil {
				return nil, err
			}
		}
	}
	previous := c.env
	c.env = env
	return previous, nil
}

// FinishEnvironment detaches and returns any attached Environment, and
// marks the Context closed: further calls return ErrContextClosed. This
// mirrors the original's consuming "finish environment" operation, which
// Go cannot express as a move, only as an explicit terminal state.
func (c *Context) FinishEnvironment() *environment.Environment {
	env := c.env
	c.env = nil
	c.closed = true
	return env
}

// spirvOptionsFor builds spirv.Options for target: SPIR-V 1.3, with debug
// info emitted when target is a debug target. The Context's CompatOptions
// are not consulted.
func spirvOptionsFor(target cgvshader.Target) spirv.Options {
	return spirv.Options{
		Version: spirv.Version1_3,
		Debug:   target.Debug(),
	}
}
