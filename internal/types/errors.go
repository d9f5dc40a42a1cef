package types

import "errors"

// Error kinds recognized across the core. Callers classify with errors.Is
// and translate to transport-level responses; the engine's event path never
// propagates these into the gateway.
var (
	// ErrValidation marks malformed requests, unknown enum values and
	// bounds violations. HTTP handlers translate it to 400.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown session, lobby or participant.
	// HTTP handlers translate it to 404; game events drop silently.
	ErrNotFound = errors.New("not found")

	// ErrStateConflict marks operations rejected by the current state,
	// such as joining a closed lobby. HTTP handlers translate it to 409.
	ErrStateConflict = errors.New("state conflict")
)

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStateConflict reports whether err is a state-conflict error
func IsStateConflict(err error) bool { return errors.Is(err, ErrStateConflict) }
