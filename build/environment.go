package build

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/gogpu/cgvshader"
	"github.com/gogpu/cgvshader/compiler"
	"github.com/gogpu/cgvshader/environment"
)

// GenerateEnvironment builds a shared Environment holding modulePaths
// (virtual paths relative to baseDir) loaded from disk, reproducing the
// original's generateShaderEnvironment: a throwaway Context drives each
// module through a full parse/lower/validate pass, so every stored module
// lands in IR form (already validated) rather than lazily-validated
// SourceCode form. The returned Environment is independent of the
// throwaway Context and is meant to be attached (via Setup.SharedEnvironment)
// across every later Run call that shares its compat hash.
func GenerateEnvironment(target cgvshader.Target, searchPaths []string, compat compiler.CompatOptions, baseDir string, modulePaths []string) (*environment.Environment, error) {
	ctx, err := compiler.NewBuilder(target).WithSearchPaths(searchPaths...).WithCompatOptions(compat).Build()
	if err != nil {
		return nil, err
	}

	env := environment.New(uuid.New(), ctx.CompatHash())
	for _, rel := range modulePaths {
		full := filepath.Join(baseDir, rel)
		mod, err := ctx.LoadModuleFromDisk(full)
		if err != nil {
			return nil, fmt.Errorf("generating shared environment: %w", err)
		}
		if err := env.AddModule(rel, mod.Form, mod.Data); err != nil {
			return nil, fmt.Errorf("generating shared environment: %w", err)
		}
	}
	return env, nil
}
