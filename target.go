package cgvshader

// Target is a requested emitted-code dialect plus the switches that only
// make sense for a live Context, not for code already on disk: a debug
// build of SPIR-V carries OpName/OpLine and friends; WGSL carries no such
// distinction.
type Target struct {
	kind  SourceType
	debug bool
}

// SPIRVTarget builds a Target requesting SPIR-V, with debug info included
// when debug is true.
func SPIRVTarget(debug bool) Target {
	return Target{kind: SourceTypeSPIRV, debug: debug}
}

// WGSLTarget builds a Target requesting WGSL.
func WGSLTarget() Target {
	return Target{kind: SourceTypeWGSL}
}

// SourceType returns the dialect-only projection of t, stripped of any
// debug flag.
func (t Target) SourceType() SourceType {
	return t.kind
}

// Debug reports whether a SPIR-V Target requests debug information. It is
// always false for WGSL targets.
func (t Target) Debug() bool {
	return t.kind == SourceTypeSPIRV && t.debug
}

func (t Target) String() string {
	if t.kind == SourceTypeSPIRV && t.debug {
		return "SPIR-V(debug)"
	}
	return t.kind.String()
}

// SourceType identifies which dialect a ProgramCode is encoded in. It is
// the debug-flag-agnostic identity stored in a Package: two Targets that
// only differ in their debug flag project to the same SourceType.
type SourceType uint8

const (
	// SourceTypeSPIRV identifies SPIR-V bytecode.
	SourceTypeSPIRV SourceType = iota
	// SourceTypeWGSL identifies WGSL source text.
	SourceTypeWGSL
)

func (s SourceType) String() string {
	switch s {
	case SourceTypeSPIRV:
		return "SPIR-V"
	case SourceTypeWGSL:
		return "WGSL"
	default:
		return "unknown source type"
	}
}

// Platform describes the target environment the build is producing
// shaders for, enough to pick a feasibility-ordered target list.
type Platform struct {
	// Web is true for WebGPU/WASM targets, where only WGSL is consumable
	// natively.
	Web bool
	// Debug is true for debug builds, which prefer SPIR-V with debug
	// info when SPIR-V is otherwise preferred.
	Debug bool
}

// NativePlatform describes a non-web build with the given debug setting.
func NativePlatform(debug bool) Platform {
	return Platform{Debug: debug}
}

// WebPlatform describes a WebGPU/WASM build.
func WebPlatform() Platform {
	return Platform{Web: true}
}

// MostSuitableTarget returns the single best Target for p. On web
// platforms WGSL is preferred; on every other platform SPIR-V is
// preferred, with debug info attached for debug builds.
func MostSuitableTarget(p Platform) Target {
	if p.Web {
		return WGSLTarget()
	}
	return SPIRVTarget(p.Debug)
}

// FeasibleTargets returns every Target usable on p, ordered from most to
// least suitable. These helpers are the sole source of truth for backend
// preference used by compiler.Context selection, Package "best instance"
// materialization, and the build orchestrator's per-file target fan-out.
func FeasibleTargets(p Platform) []Target {
	if p.Web {
		return []Target{WGSLTarget(), SPIRVTarget(false)}
	}
	return []Target{SPIRVTarget(p.Debug), WGSLTarget()}
}

// ProgramCode is a uniform holder for either UTF-8 text or raw binary
// emitted code. WGSL code is always Text; SPIR-V code is always Binary.
type ProgramCode struct {
	text   string
	binary []byte
	isText bool
}

// TextCode wraps UTF-8 source text as ProgramCode.
func TextCode(text string) ProgramCode {
	return ProgramCode{text: text, isText: true}
}

// BinaryCode wraps a raw byte blob as ProgramCode.
func BinaryCode(bin []byte) ProgramCode {
	return ProgramCode{binary: bin}
}

// IsText reports whether c holds the Text variant.
func (c ProgramCode) IsText() bool {
	return c.isText
}

// IsBinary reports whether c holds the Binary variant.
func (c ProgramCode) IsBinary() bool {
	return !c.isText
}

// Bytes returns a uniform byte view of c: text is encoded as UTF-8,
// binary is returned as-is. The returned slice must not be mutated by
// callers of Text/Binary-typed code that still need the original variant
// tag preserved.
func (c ProgramCode) Bytes() []byte {
	if c.isText {
		return []byte(c.text)
	}
	return c.binary
}

// IntoBytes is a destructive conversion to an owned byte vector,
// discarding the variant tag.
func (c ProgramCode) IntoBytes() []byte {
	return c.Bytes()
}

// Text returns the text payload and true if c holds the Text variant.
func (c ProgramCode) Text() (string, bool) {
	if !c.isText {
		return "", false
	}
	return c.text, true
}

// Binary returns the binary payload and true if c holds the Binary
// variant.
func (c ProgramCode) Binary() ([]byte, bool) {
	if c.isText {
		return nil, false
	}
	return c.binary, true
}
