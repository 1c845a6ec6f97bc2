package domain

import "errors"

var (
	// ErrInputNotFound signals a missing input file or an unreachable URL.
	ErrInputNotFound = errors.New("input not found")
	// ErrUnauthorized signals a missing or incorrect letterhead token.
	ErrUnauthorized = errors.New("invalid password for letterhead access")
	// ErrRenderTimeout signals that navigation or printing exceeded its bound.
	ErrRenderTimeout = errors.New("render timed out")
	// ErrEngineUnavailable signals that the shared render engine is not running.
	ErrEngineUnavailable = errors.New("render engine unavailable")
	// ErrConversion is the generic render or print failure.
	ErrConversion = errors.New("pdf conversion failed")
	// ErrIO signals a failure writing or reading local files.
	ErrIO = errors.New("i/o failure")
	// ErrInvalidOptions signals a request that cannot be converted as given.
	ErrInvalidOptions = errors.New("invalid conversion options")
)
