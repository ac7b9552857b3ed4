// Package environment implements the shared, merge-able collection of
// named shader modules that independently-compiled units attach to a
// compiler.Context in order to see each other's modules.
//
// An Environment carries a UUID identity and a compatibility hash derived
// from the compiler settings that shaped the modules it holds; two
// environments may only be merged when their compatibility hashes agree.
// Merge is asymmetric (the receiver ends up referencing the argument, not
// the other way around) and atomic (on any error the receiver is left
// exactly as it was).
package environment

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// StorageForm selects how a Module's payload is encoded.
type StorageForm uint8

const (
	// SourceCode stores the module as UTF-8 shader source text.
	SourceCode StorageForm = iota
	// IR stores the module as an opaque, already-loaded intermediate
	// representation blob understood by the external compiler.
	IR
)

func (f StorageForm) String() string {
	if f == IR {
		return "IR"
	}
	return "SourceCode"
}

// Module is a named shader module as stored in an Environment. Its
// identity is its virtual path; Data holds either UTF-8 source text (for
// Form == SourceCode) or an opaque compiler-specific blob (Form == IR).
type Module struct {
	Path string
	Form StorageForm
	Data []byte
}

// Environment is a merge-able, identity-bearing collection of named
// shader modules. The zero value is not valid; construct one with New.
type Environment struct {
	id         uuid.UUID
	compatHash uint64

	// ownedModules holds the paths directly added to this environment
	// (as opposed to reached via a merged-in sub-environment).
	ownedModules map[string]struct{}

	// linkedEnvs maps each sub-environment UUID this environment has
	// merged in to the set of module paths that sub-environment itself
	// directly owned at merge time.
	linkedEnvs map[uuid.UUID]map[string]struct{}

	// modules holds every module reachable from this environment,
	// whether owned directly or inherited via a merge.
	modules map[string]Module
}

// New constructs an empty Environment identified by id, with the given
// compatibility hash.
func New(id uuid.UUID, compatHash uint64) *Environment {
	return &Environment{
		id:           id,
		compatHash:   compatHash,
		ownedModules: map[string]struct{}{},
		linkedEnvs:   map[uuid.UUID]map[string]struct{}{},
		modules:      map[string]Module{},
	}
}

// UUID reports e's identity.
func (e *Environment) UUID() uuid.UUID {
	return e.id
}

// CompatHash reports e's compatibility hash.
func (e *Environment) CompatHash() uint64 {
	return e.compatHash
}

// CloneWithNewUUID produces a value-identical environment with a fresh
// identity, used when forking for modification without disturbing e.
func (e *Environment) CloneWithNewUUID(id uuid.UUID) *Environment {
	clone := &Environment{
		id:           id,
		compatHash:   e.compatHash,
		ownedModules: copyStringSet(e.ownedModules),
		linkedEnvs:   make(map[uuid.UUID]map[string]struct{}, len(e.linkedEnvs)),
		modules:      make(map[string]Module, len(e.modules)),
	}
	for envID, paths := range e.linkedEnvs {
		clone.linkedEnvs[envID] = copyStringSet(paths)
	}
	for path, mod := range e.modules {
		data := make([]byte, len(mod.Data))
		copy(data, mod.Data)
		clone.modules[path] = Module{Path: mod.Path, Form: mod.Form, Data: data}
	}
	return clone
}

func copyStringSet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// validModulePath reports whether p has both a parent component and a
// non-empty file stem, treating p as a slash-separated virtual path (not
// necessarily a real filesystem path).
func validModulePath(p string) bool {
	if p == "" {
		return false
	}
	dir, file := path.Split(p)
	if dir == "" || file == "" {
		return false
	}
	stem := strings.TrimSuffix(file, path.Ext(file))
	return stem != ""
}

// AddModule adds a module at the given virtual path with the chosen
// storage form, taking ownership of data. It fails with
// DuplicateModulePathsError if the path is already owned directly or
// indirectly, or InvalidModulePathError if the path lacks a parent
// component or a file stem.
func (e *Environment) AddModule(virtualPath string, form StorageForm, data []byte) error {
	if !validModulePath(virtualPath) {
		return &InvalidModulePathError{Path: virtualPath}
	}
	if _, exists := e.modules[virtualPath]; exists {
		return &DuplicateModulePathsError{Path: virtualPath}
	}
	owned := make([]byte, len(data))
	copy(owned, data)
	e.modules[virtualPath] = Module{Path: virtualPath, Form: form, Data: owned}
	e.ownedModules[virtualPath] = struct{}{}
	return nil
}

// ContainsModule reports whether path is reachable from e, whether owned
// directly or via a merged sub-environment.
func (e *Environment) ContainsModule(virtualPath string) bool {
	_, ok := e.modules[virtualPath]
	return ok
}

// Module returns the module at path and true if it is reachable from e.
func (e *Environment) Module(virtualPath string) (Module, bool) {
	m, ok := e.modules[virtualPath]
	return m, ok
}

// ModulePaths returns every module path reachable from e, sorted for
// deterministic iteration.
func (e *Environment) ModulePaths() []string {
	paths := make([]string, 0, len(e.modules))
	for p := range e.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Merge produces a new Environment identified by id that is the result of
// merging other into a copy of e. Merging is asymmetric: the returned
// environment references other, never the reverse.
func (e *Environment) Merge(other *Environment, id uuid.UUID) (*Environment, error) {
	if e.compatHash != other.compatHash {
		return nil, &IncompatibleError{Self: e.compatHash, Other: other.compatHash}
	}
	newEnv := e.CloneWithNewUUID(id)
	if err := newEnv.MergeWith(other); err != nil {
		return nil, err
	}
	return newEnv, nil
}

// MergeWith merges other into e in place. On any error e is left
// unchanged. Internal-consistency violations — an other environment whose
// own bookkeeping is self-contradictory — panic, since they indicate a
// producer bug rather than a condition a caller can act on.
func (e *Environment) MergeWith(other *Environment) error {
	if e.compatHash != other.compatHash {
		return &IncompatibleError{Self: e.compatHash, Other: other.compatHash}
	}

	// Step 1: collect the sub-environments of `other` that `e` does not
	// already reference, and verify none of them claim overlapping
	// module names amongst themselves. `other` itself is one more such
	// unit — its own directly-owned paths become a sub-environment of
	// `e` too, exactly like the ones `other` previously merged in.
	type subEnv struct {
		id    uuid.UUID
		paths map[string]struct{}
	}
	var toLink []subEnv
	moduleOrigins := map[string]uuid.UUID{}
	addSub := func(envID uuid.UUID, paths map[string]struct{}) {
		toLink = append(toLink, subEnv{id: envID, paths: paths})
		for name := range paths {
			if existing, ok := moduleOrigins[name]; ok {
				panic(fmt.Sprintf(
					"environment %s: to-be-merged environment %s claims to reference at least two "+
						"sub-environments defining module %q: already in %s, also in %s",
					e.id, other.id, name, existing, envID,
				))
			}
			moduleOrigins[name] = envID
		}
	}
	for envID, paths := range other.linkedEnvs {
		if _, already := e.linkedEnvs[envID]; already {
			continue
		}
		addSub(envID, paths)
	}
	if _, already := e.linkedEnvs[other.id]; !already {
		addSub(other.id, other.ownedModules)
	}

	// Step 2: flatten the new modules to be merged in, checking for
	// duplicates against what `e` already holds.
	newModules := make(map[string]Module)
	for _, sub := range toLink {
		for name := range sub.paths {
			if _, already := e.modules[name]; already {
				return &DuplicateModuleNamesError{Name: name}
			}
			mod, ok := other.modules[name]
			if !ok {
				panic(fmt.Sprintf(
					"environment %s: sub-environment %s claims to own module %q but %s has no such module",
					e.id, sub.id, name, other.id,
				))
			}
			if _, dup := newModules[name]; dup {
				panic(fmt.Sprintf(
					"environment %s: to-be-merged environment %s defines module %q twice", e.id, other.id, name,
				))
			}
			newModules[name] = mod
		}
	}

	// Step 3: validation passed, commit.
	for name, mod := range newModules {
		if _, already := e.modules[name]; already {
			panic(fmt.Sprintf("environment %s: module %q already present after validation passed", e.id, name))
		}
		data := make([]byte, len(mod.Data))
		copy(data, mod.Data)
		e.modules[name] = Module{Path: mod.Path, Form: mod.Form, Data: data}
	}
	for _, sub := range toLink {
		if _, already := e.linkedEnvs[sub.id]; already {
			panic(fmt.Sprintf("environment %s: sub-environment %s already referenced after validation passed", e.id, sub.id))
		}
		e.linkedEnvs[sub.id] = copyStringSet(sub.paths)
	}

	return nil
}
