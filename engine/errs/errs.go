// Package errs defines the sentinel error kinds of spec §7 so callers can
// classify a failure with errors.Is instead of string matching, while the
// wrapped message still carries the underlying cause.
package errs

import "errors"

var (
	// ErrAcquire: a frame could not be obtained (network/decoder failure).
	// Counted by engine/health.Tracker; triggers auto-disable at threshold.
	ErrAcquire = errors.New("acquire: frame could not be obtained")

	// ErrUpload: the object-store put failed. Non-fatal; the cycle
	// continues with a nil cloud URL.
	ErrUpload = errors.New("upload: object store put failed")

	// ErrAI: either hazard detector failed. Non-fatal per call.
	ErrAI = errors.New("ai: detector call failed")

	// ErrPersist: a local store write failed. Logged; the cycle continues.
	ErrPersist = errors.New("persist: store write failed")

	// ErrGraph: a missing start/exit id, or an edge referencing an unknown
	// node. The affected start is skipped.
	ErrGraph = errors.New("graph: invalid start or exit")

	// ErrDispatch: a push channel write failed.
	ErrDispatch = errors.New("dispatch: push channel write failed")

	// ErrRadio: the modulator subprocess exited non-zero or timed out.
	ErrRadio = errors.New("radio: modulator process failed")

	// ErrConfig: settings could not be read; the cycle falls back to
	// defaults (cloud processing on, cloud sync off).
	ErrConfig = errors.New("config: settings unreadable")
)
