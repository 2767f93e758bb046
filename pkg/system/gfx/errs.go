package gfx

import "errors"

var (
	// ErrUnsupported indicates a backend's counters do not exist on
	// this platform; the tracker falls back permanently.
	ErrUnsupported = errors.New("gfx: residency source unsupported")
)
