// Package pak implements Package, the on-disk unit produced by the build
// orchestrator: one or more ready-to-use Program instances, each compiled
// to a different cgvshader.SourceType, bundled together with a stable
// binary codec and GPU shader-module materialization.
package pak

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gogpu/cgvshader"
	"github.com/gogpu/cgvshader/program"
)

// magic identifies the package binary format, mirroring the SPIR-V
// backend's own MagicNumber-prefixed word stream (spirv.MagicNumber).
const magic uint32 = 0x50414b31 // "PAK1"

// EntryPoint holds one specialization's emitted code as opaque bytes.
type EntryPoint struct {
	Code []byte
}

// Program is a package-local instance of a shader program for one source
// type: a map from entry point name to its specialized code, plus an
// optional generic variant stored under the empty-string key. Unlike
// program.Program, Program here is already reduced to raw bytes — it has
// left behind the Target it was emitted for, since that is tracked one
// level up by the SourceType it is stored under in a Package.
type Program struct {
	entryPoints map[string]EntryPoint
}

// genericKey is the map key Program uses for the generic (entry-point-less)
// variant, matching the original's Option<String>::None.
const genericKey = ""

// FromSingleEntryPoint builds a Program holding exactly one specialization.
// Pass an empty name to store it as the generic variant.
func FromSingleEntryPoint(name string, code []byte) Program {
	return Program{entryPoints: map[string]EntryPoint{name: {Code: code}}}
}

// Generic builds a Program holding only a generic variant.
func Generic(code []byte) Program {
	return FromSingleEntryPoint(genericKey, code)
}

// AddEntryPoint inserts or replaces the specialization for name (or the
// generic variant, if name is empty).
func (p *Program) AddEntryPoint(name string, code []byte) {
	if p.entryPoints == nil {
		p.entryPoints = make(map[string]EntryPoint)
	}
	p.entryPoints[name] = EntryPoint{Code: code}
}

// Code returns the code for entryPointName (or the generic variant, if
// entryPointName is empty), and true if present.
func (p Program) Code(entryPointName string) ([]byte, bool) {
	ep, ok := p.entryPoints[entryPointName]
	if !ok {
		return nil, false
	}
	return ep.Code, true
}

// FromProgram reduces a program.Program (component E) to a package-local
// Program plus the SourceType it was built for, copying its generic
// variant and every named entry point into raw bytes.
func FromProgram(p *program.Program) (Program, cgvshader.SourceType, error) {
	out := Program{entryPoints: make(map[string]EntryPoint)}
	if generic, ok := p.Generic(); ok {
		out.entryPoints[genericKey] = EntryPoint{Code: generic.Bytes()}
	}
	for _, name := range p.EntryPoints() {
		code, ok := p.ByName(name)
		if !ok {
			return Program{}, 0, fmt.Errorf("pak: entry point %q reported by EntryPoints but missing from ByName", name)
		}
		if name == genericKey {
			return Program{}, 0, fmt.Errorf("pak: entry point name must not be empty")
		}
		out.entryPoints[name] = EntryPoint{Code: code.Bytes()}
	}
	return out, p.Target().SourceType(), nil
}

// Package bundles one or more Program instances, keyed by the SourceType
// each was compiled to, under a name (typically the originating file path).
type Package struct {
	name      string
	instances map[cgvshader.SourceType]Program
}

// NewPackage starts an empty, named Package.
func NewPackage(name string) *Package {
	return &Package{name: name, instances: make(map[cgvshader.SourceType]Program)}
}

// WithSingleInstance builds a Package with exactly one instance. An empty
// name is stored as "<unnamed>", matching the original's default.
func WithSingleInstance(sourceType cgvshader.SourceType, program Program, name string) *Package {
	if name == "" {
		name = "<unnamed>"
	}
	p := NewPackage(name)
	p.instances[sourceType] = program
	return p
}

// Name reports the Package's name.
func (p *Package) Name() string {
	return p.name
}

// AddInstance adds (or replaces) the instance for sourceType.
func (p *Package) AddInstance(sourceType cgvshader.SourceType, program Program) {
	if p.instances == nil {
		p.instances = make(map[cgvshader.SourceType]Program)
	}
	p.instances[sourceType] = program
}

// Instance returns the Program stored for sourceType, and true if present.
func (p *Package) Instance(sourceType cgvshader.SourceType) (Program, bool) {
	prog, ok := p.instances[sourceType]
	return prog, ok
}

// sortedSourceTypes returns the Package's populated source types in
// ascending numeric order, giving Serialize a deterministic byte layout.
func (p *Package) sortedSourceTypes() []cgvshader.SourceType {
	types := make([]cgvshader.SourceType, 0, len(p.instances))
	for st := range p.instances {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (pr Program) sortedNames() []string {
	names := make([]string, 0, len(pr.entryPoints))
	for name := range pr.entryPoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeLenPrefixed(buf *bytes.Buffer, data []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Serialize encodes the Package into a stable, length-prefixed binary
// layout: a magic/version header, the package name, then each source-type
// instance (sorted by SourceType value) with its entry points (sorted by
// name, the empty name sorting first as the generic variant).
func (p *Package) Serialize() []byte {
	var buf bytes.Buffer
	var header [5]byte
	binary.LittleEndian.PutUint32(header[0:4], magic)
	header[4] = 1 // format version
	buf.Write(header[:])

	writeLenPrefixed(&buf, []byte(p.name))

	types := p.sortedSourceTypes()
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(types)))
	buf.Write(countBuf[:])

	for _, st := range types {
		buf.WriteByte(byte(st))
		prog := p.instances[st]
		names := prog.sortedNames()
		binary.LittleEndian.PutUint32(countBuf[:], uint32(len(names)))
		buf.Write(countBuf[:])
		for _, name := range names {
			writeLenPrefixed(&buf, []byte(name))
			writeLenPrefixed(&buf, prog.entryPoints[name].Code)
		}
	}
	return buf.Bytes()
}

// Deserialize decodes a Package previously produced by Serialize.
func Deserialize(data []byte) (*Package, error) {
	r := bytes.NewReader(data)
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, &DecodeError{Stage: "header", Err: err}
	}
	if binary.LittleEndian.Uint32(header[0:4]) != magic {
		return nil, &DecodeError{Stage: "header", Err: fmt.Errorf("bad magic number")}
	}
	if header[4] != 1 {
		return nil, &DecodeError{Stage: "header", Err: fmt.Errorf("unsupported format version %d", header[4])}
	}

	nameBytes, err := readLenPrefixed(r)
	if err != nil {
		return nil, &DecodeError{Stage: "name", Err: err}
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, &DecodeError{Stage: "instance count", Err: err}
	}
	instanceCount := binary.LittleEndian.Uint32(countBuf[:])

	pkg := NewPackage(string(nameBytes))
	for i := uint32(0); i < instanceCount; i++ {
		stByte, err := r.ReadByte()
		if err != nil {
			return nil, &DecodeError{Stage: "source type", Err: err}
		}
		st := cgvshader.SourceType(stByte)

		if _, err := io.ReadFull(r, countBuf[:]); err != nil {
			return nil, &DecodeError{Stage: "entry point count", Err: err}
		}
		entryCount := binary.LittleEndian.Uint32(countBuf[:])

		prog := Program{entryPoints: make(map[string]EntryPoint, entryCount)}
		for j := uint32(0); j < entryCount; j++ {
			nameBytes, err := readLenPrefixed(r)
			if err != nil {
				return nil, &DecodeError{Stage: "entry point name", Err: err}
			}
			code, err := readLenPrefixed(r)
			if err != nil {
				return nil, &DecodeError{Stage: "entry point code", Err: err}
			}
			prog.entryPoints[string(nameBytes)] = EntryPoint{Code: code}
		}
		pkg.instances[st] = prog
	}
	return pkg, nil
}

// WriteToFile serializes the Package and writes it to filename.
func (p *Package) WriteToFile(filename string) error {
	return os.WriteFile(filename, p.Serialize(), 0o644)
}

// FromFile reads and deserializes a Package from filename.
func FromFile(filename string) (*Package, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Deserialize(data)
}
