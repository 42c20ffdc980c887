package model

import "github.com/rotisserie/eris"

// Sentinel errors for the scoping engine. Callers match with eris.Is and
// wrap with context before surfacing.
var (
	ErrUnknownPlatform             = eris.New("unknown platform")
	ErrUnknownField                = eris.New("unknown field")
	ErrValidation                  = eris.New("validation failed")
	ErrInvalidProvenanceTransition = eris.New("invalid provenance transition")
	ErrBackendTimeout              = eris.New("backend timeout")
	ErrSessionNotFound             = eris.New("session not found")
)
