package build

import (
	"fmt"
	"os"
	"strings"
)

// DepFile accumulates Makefile-style dependency rules ("target: prereq
// prereq ...") for consumption by Make-driven or go:generate-driven outer
// build systems. This is the Go-ecosystem analogue Run emits alongside the
// stdout "go:rerun-if-changed" lines, standing in for Cargo's
// compiler-integrated dependency tracking, which the Go toolchain has no
// equivalent hook for.
type DepFile struct {
	rules []depRule
}

type depRule struct {
	target  string
	prereqs []string
}

// NewDepFile starts an empty DepFile.
func NewDepFile() *DepFile {
	return &DepFile{}
}

// AddRule records that target depends on prereqs.
func (d *DepFile) AddRule(target string, prereqs ...string) {
	d.rules = append(d.rules, depRule{target: target, prereqs: append([]string(nil), prereqs...)})
}

// String renders the accumulated rules as a ".d" fragment.
func (d *DepFile) String() string {
	var b strings.Builder
	for _, r := range d.rules {
		fmt.Fprintf(&b, "%s:", r.target)
		for _, p := range r.prereqs {
			b.WriteByte(' ')
			b.WriteString(p)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo writes the DepFile's fragment to path.
func (d *DepFile) WriteTo(path string) error {
	return os.WriteFile(path, []byte(d.String()), 0o644)
}
