package build

import (
	"github.com/gogpu/cgvshader/environment"
)

// Setup is the handle to build-setup state the orchestrator needs: the
// shader search path every Context is configured with, an optional shared
// Environment (e.g. a core shader library) attached to every per-target
// Context, and a set of active feature flags a caller can branch on.
type Setup struct {
	ShaderSearchPath  []string
	SharedEnvironment *environment.Environment
	Features          map[string]bool
}

// NewSetup starts an empty Setup.
func NewSetup() *Setup {
	return &Setup{Features: make(map[string]bool)}
}

// AddShaderPath appends path to the shader search path.
func (s *Setup) AddShaderPath(path string) *Setup {
	s.ShaderSearchPath = append(s.ShaderSearchPath, path)
	return s
}

// WithSharedEnvironment attaches env as the shared Environment every
// per-target Context in a Run will attempt to attach.
func (s *Setup) WithSharedEnvironment(env *environment.Environment) *Setup {
	s.SharedEnvironment = env
	return s
}

// WithFeature sets a named feature flag.
func (s *Setup) WithFeature(name string, enabled bool) *Setup {
	if s.Features == nil {
		s.Features = make(map[string]bool)
	}
	s.Features[name] = enabled
	return s
}

// Feature reports whether the named feature flag is set.
func (s *Setup) Feature(name string) bool {
	return s.Features[name]
}
