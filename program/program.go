// Package program implements Program, the high-level link unit holding
// one Target's emitted code: a generic variant covering every entry
// point, plus per-entry-point specializations.
package program

import (
	"errors"
	"fmt"

	"github.com/gogpu/cgvshader"
	"github.com/gogpu/cgvshader/compiler"
)

// BuildError reports a compilation failure while building a Program from
// a LinkedComposite, carrying enough context to locate the offending
// stage: the generic emission, or a specific entry-point index/name.
type BuildError struct {
	EntryPointIndex int
	EntryPointName  string
	Err             error
}

func (e *BuildError) Error() string {
	if e.EntryPointName != "" {
		return fmt.Sprintf("building entry point %d (%q): %v", e.EntryPointIndex, e.EntryPointName, e.Err)
	}
	return fmt.Sprintf("building generic variant: %v", e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ErrEmptyProgram is returned by NewProgram when neither a generic
// variant nor any named entry point is supplied.
var ErrEmptyProgram = errors.New("program: must contain a generic variant, one or more named entry points, or both")

// Program bundles the Target it targets with the emitted code for that
// target: a generic variant containing every entry point's code merged
// into one artifact, and an ordered, name-indexed list of per-entry-point
// specializations. Names are unique within one Program.
type Program struct {
	target     cgvshader.Target
	hasGeneric bool
	generic    cgvshader.ProgramCode
	names      []string
	codes      []cgvshader.ProgramCode
	index      map[string]int
}

// NewProgram constructs a Program directly from already-emitted code.
// Pass a nil generic to omit the generic variant — at least one of
// generic or a named entry must be present.
func NewProgram(target cgvshader.Target, generic *cgvshader.ProgramCode, names []string, codes []cgvshader.ProgramCode) (*Program, error) {
	if len(names) != len(codes) {
		return nil, fmt.Errorf("program: %d names but %d codes", len(names), len(codes))
	}
	if generic == nil && len(names) == 0 {
		return nil, ErrEmptyProgram
	}
	p := &Program{target: target, names: append([]string(nil), names...), codes: append([]cgvshader.ProgramCode(nil), codes...)}
	if generic != nil {
		p.hasGeneric = true
		p.generic = *generic
	}
	p.index = make(map[string]int, len(p.names))
	for i, name := range p.names {
		if _, dup := p.index[name]; dup {
			return nil, fmt.Errorf("program: duplicate entry point name %q", name)
		}
		p.index[name] = i
	}
	return p, nil
}

// FromLinkedComposite builds a Program by driving lc: first emitting the
// generic variant covering the whole composite, then, for each entry
// point lc exposes, emitting its specialization.
func FromLinkedComposite(lc *compiler.LinkedComposite) (*Program, error) {
	target := lc.Target()
	generic, err := lc.Generic(target)
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	entryNames := lc.EntryPoints()
	codes := make([]cgvshader.ProgramCode, len(entryNames))
	for i, name := range entryNames {
		code, err := lc.EntryPoint(target, name)
		if err != nil {
			return nil, &BuildError{EntryPointIndex: i, EntryPointName: name, Err: err}
		}
		codes[i] = code
	}

	return NewProgram(target, &generic, entryNames, codes)
}

// Target reports the Target this Program's code was emitted for.
func (p *Program) Target() cgvshader.Target {
	return p.target
}

// Generic returns the generic variant and true if one is present.
func (p *Program) Generic() (cgvshader.ProgramCode, bool) {
	return p.generic, p.hasGeneric
}

// EntryPoints returns the names of every per-entry-point specialization,
// in construction order.
func (p *Program) EntryPoints() []string {
	return append([]string(nil), p.names...)
}

// ByName returns the specialization for name, and true if it is present.
func (p *Program) ByName(name string) (cgvshader.ProgramCode, bool) {
	i, ok := p.index[name]
	if !ok {
		return cgvshader.ProgramCode{}, false
	}
	return p.codes[i], true
}
