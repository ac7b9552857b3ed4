package compiler

import "hash/fnv"

// MatrixLayout selects the memory layout convention for matrix types,
// which affects the byte layout of any module compiled under it.
type MatrixLayout uint8

const (
	// ColumnMajor lays matrices out column-by-column.
	ColumnMajor MatrixLayout = iota
	// RowMajor lays matrices out row-by-row.
	RowMajor
)

// OptimizationLevel selects how aggressively emitted code is optimized.
// Treated as compat-relevant throughout: optimization in this pipeline
// can fold constants and reorder struct padding in ways that change
// emitted symbol layout, so two Contexts built with different levels are
// never considered compatible.
type OptimizationLevel uint8

const (
	OptNone OptimizationLevel = iota
	OptBasic
	OptFull
)

// DebugInfoLevel selects how much debug information (OpName, OpLine, ...)
// is embedded in emitted SPIR-V. Cosmetic: it never changes emitted
// symbol layout or ABI, so it is deliberately excluded from the
// compatibility hash.
type DebugInfoLevel uint8

const (
	DebugNone DebugInfoLevel = iota
	DebugLineInfo
	DebugFull
)

// CompatOptions groups the compiler switches a Context builder accepts.
// Only the fields that can alter emitted code shape or symbol layout feed
// the compatibility hash; DebugInfo is recorded but excluded.
type CompatOptions struct {
	MatrixLayout      MatrixLayout
	OptimizationLevel OptimizationLevel
	// DirectSPIRV, when true, requests that SPIR-V be emitted directly
	// rather than via an intermediate form. Affects whether two
	// environments' modules may be safely mixed, so it is hashed.
	DirectSPIRV bool
	// DebugInfo configures the amount of debug information requested.
	// Not hashed: see the type's doc comment.
	DebugInfo DebugInfoLevel
}

// DefaultCompatOptions returns the options used when a builder does not
// configure any explicitly.
func DefaultCompatOptions() CompatOptions {
	return CompatOptions{
		MatrixLayout:      ColumnMajor,
		OptimizationLevel: OptBasic,
		DirectSPIRV:       false,
		DebugInfo:         DebugNone,
	}
}

// compatHash computes the 64-bit compatibility hash for o by hashing the
// canonical byte encoding of its compat-relevant switches only. Any two
// Contexts built with the same MatrixLayout, OptimizationLevel, and
// DirectSPIRV setting share a hash regardless of their DebugInfo level,
// so their Environments may be freely merged and attached to each other.
func (o CompatOptions) compatHash() uint64 {
	h := fnv.New64a()
	var direct byte
	if o.DirectSPIRV {
		direct = 1
	}
	h.Write([]byte{byte(o.MatrixLayout), byte(o.OptimizationLevel), direct})
	return h.Sum64()
}
