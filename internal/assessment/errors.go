package assessment

import (
	"errors"
	"fmt"
)

// ErrNoSignal rejects a request that carries neither a usable text nor
// a usable image signal. It is the only error that blocks an
// evaluation outright.
var ErrNoSignal = errors.New("no_signal: at least one of text or image is required")

// InputError marks a request the engine cannot evaluate at all. The
// HTTP layer maps it to 422; everything else degrades.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return "invalid input: " + e.Reason }

// StoreError marks a persistence failure during commit. The computed
// assessment is still returned to the caller, flagged unsaved, so what
// the user saw never silently diverges from what history records.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("profile store: %v", e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
