// Package build implements the build-time orchestrator (component G): it
// walks a shader source tree, drives a compiler.Context per feasible
// target over every file not under a skipped sub-directory, bundles the
// resulting per-target instances into a pak.Package, writes it to a
// mirrored output tree, and emits build-system dependency declarations.
package build

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gogpu/cgvshader"
	"github.com/gogpu/cgvshader/compiler"
	"github.com/gogpu/cgvshader/pak"
	"github.com/gogpu/cgvshader/program"
)

var log = logrus.WithField("component", "build")

// sourceExtension is the file extension Run looks for while walking a
// shader source tree.
const sourceExtension = ".wgsl"

// packageExtension is the fixed extension Run gives to every package it
// writes, matching the original's ".spk".
const packageExtension = ".spk"

// descriptorFileName is the runtime environment descriptor Run writes
// alongside its output tree.
const descriptorFileName = "shader_environment.yaml"

// Options configures a Run.
type Options struct {
	// Targets to compile each file for. Defaults to
	// cgvshader.FeasibleTargets(Platform) when nil.
	Targets []cgvshader.Target
	// Platform selects the default Targets when Targets is nil; it is not
	// recorded in the resulting packages.
	Platform cgvshader.Platform
	// SkipSubDirs lists source-tree-relative sub-directories to ignore
	// entirely, along with their contents.
	SkipSubDirs []string
	// DepFilePath, if non-empty, receives a Makefile-style dependency
	// fragment covering every consumed input and every produced output.
	DepFilePath string
	// CompatOptions configures every per-target Context's compatibility
	// hash; Run refuses to attach an incompatible Setup.SharedEnvironment.
	CompatOptions compiler.CompatOptions
}

// Run walks sourceDir, compiles every *.wgsl file it finds for every
// feasible target, and writes a pak.Package for each to the mirrored
// location under outDir. See the package doc for the full state machine.
func Run(setup *Setup, sourceDir, outDir string, opts Options) error {
	targets := opts.Targets
	if len(targets) == 0 {
		targets = cgvshader.FeasibleTargets(opts.Platform)
	}

	contexts := make([]*compiler.Context, len(targets))
	for i, target := range targets {
		ctx, err := compiler.NewBuilder(target).
			WithSearchPaths(setup.ShaderSearchPath...).
			WithCompatOptions(opts.CompatOptions).
			Build()
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		if setup.SharedEnvironment != nil {
			if _, err := ctx.ReplaceEnvironment(setup.SharedEnvironment); err != nil {
				return fmt.Errorf("build: attaching shared environment for target %s: %w", target, err)
			}
		}
		contexts[i] = ctx
	}

	depFile := NewDepFile()
	skipSet := make(map[string]struct{}, len(opts.SkipSubDirs))
	for _, s := range opts.SkipSubDirs {
		skipSet[filepath.Clean(s)] = struct{}{}
	}

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && underSkippedDir(rel, skipSet) {
				log.WithField("dir", rel).Debug("skipping directory")
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != sourceExtension {
			return nil
		}
		return processFile(contexts, path, rel, sourceDir, outDir, depFile)
	})
	if err != nil {
		return err
	}

	if opts.DepFilePath != "" {
		if err := depFile.WriteTo(opts.DepFilePath); err != nil {
			return fmt.Errorf("build: writing dep file: %w", err)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("build: creating output directory: %w", err)
	}
	if err := WriteDescriptor(filepath.Join(outDir, descriptorFileName), setup.ShaderSearchPath); err != nil {
		return fmt.Errorf("build: writing runtime environment descriptor: %w", err)
	}

	return nil
}

// underSkippedDir reports whether rel (a source-tree-relative directory
// path, "." for the root) is itself, or is nested under, one of the
// cleaned paths in skipSet.
func underSkippedDir(rel string, skipSet map[string]struct{}) bool {
	if rel == "." || rel == "" {
		return false
	}
	rel = filepath.Clean(rel)
	for rel != "." {
		if _, skipped := skipSet[rel]; skipped {
			return true
		}
		rel = filepath.Dir(rel)
	}
	return false
}

// processFile drives the Discover -> Compile -> Bundle -> Write -> Emit-Deps
// state machine for one source file against every context in contexts.
func processFile(contexts []*compiler.Context, srcPath, rel, sourceDir, outDir string, depFile *DepFile) error {
	outRel := strings.TrimSuffix(rel, sourceExtension) + packageExtension
	outPath := filepath.Join(outDir, outRel)

	pkgName := filepath.ToSlash(rel)
	pkg := pak.NewPackage(pkgName)

	for _, ctx := range contexts {
		mod, err := ctx.LoadModuleFromDisk(srcPath)
		if err != nil {
			return &FileError{Path: srcPath, Err: err}
		}
		linked, err := ctx.NewComposite().Add(mod).Link()
		if err != nil {
			return &FileError{Path: srcPath, Err: err}
		}
		prog, err := program.FromLinkedComposite(linked)
		if err != nil {
			return &FileError{Path: srcPath, Err: err}
		}
		instance, sourceType, err := pak.FromProgram(prog)
		if err != nil {
			return &FileError{Path: srcPath, Err: err}
		}
		pkg.AddInstance(sourceType, instance)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &FileError{Path: srcPath, Err: err}
	}
	if err := pkg.WriteToFile(outPath); err != nil {
		return &FileError{Path: outPath, Err: err}
	}

	announceRerunIfChanged(srcPath)
	announceRerunIfChanged(outPath)
	depFile.AddRule(outPath, srcPath)

	return nil
}

// announceRerunIfChanged prints the Go-idiomatic analogue of Cargo's
// "cargo:rerun-if-changed=<path>" convention for human/CI consumption.
func announceRerunIfChanged(path string) {
	fmt.Println("go:rerun-if-changed", path)
}
