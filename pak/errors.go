package pak

import "fmt"

// InvalidSourceTypeError is returned when a Package has no instance for the
// requested cgvshader.SourceType.
type InvalidSourceTypeError struct {
	SourceType string
}

func (e *InvalidSourceTypeError) Error() string {
	return fmt.Sprintf("invalid source type: %q", e.SourceType)
}

// InvalidEntryPointError is returned when the requested instance has no
// specialization (and no generic variant) for the requested entry point.
type InvalidEntryPointError struct {
	EntryPoint string
}

func (e *InvalidEntryPointError) Error() string {
	return fmt.Sprintf("invalid entry point: %q", e.EntryPoint)
}

// DecodeError wraps a failure to decode a serialized Package, carrying the
// stage at which decoding broke down.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding package: %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
