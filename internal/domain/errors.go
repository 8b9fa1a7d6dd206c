package domain

import "errors"

var (
	// ErrEmptyInput marks a zero-text / zero-chunk input. Pipelines treat it
	// as a normal short-circuit producing a zero result, never as a failure.
	ErrEmptyInput = errors.New("empty input")

	// ErrDimensionMismatch marks a vector whose length differs from the
	// configured collection dimension. This is a configuration error: fatal,
	// never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrAuditLog marks an audit write that failed after generation
	// succeeded. The answer is still returned; callers detect this with
	// errors.Is and report it out of band.
	ErrAuditLog = errors.New("audit log write failed")
)
