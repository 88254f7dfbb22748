/*
errors.go - Centralized error taxonomy for the bank engine

ERROR CATEGORIES:
  1. NotFound          - item metadata absent; skip that item, continue batch
  2. CapacityExceeded  - real-storage mutation refused; partial grant stands
  3. Persistence       - transaction could not commit; the flow aborts
  4. StaleRequester    - requester vanished across a suspension point; the
                         flow aborts silently with no further mutation

PROPAGATION:
  Metadata and capacity errors are recovered per item inside the orchestrator.
  Persistence and liveness errors abort the whole use-case flow.
*/
package bank

import "errors"

var (
	// ErrNotFound is returned when item metadata cannot be resolved.
	ErrNotFound = errors.New("item metadata not found")

	// ErrCapacityExceeded is returned when the requester's real storage
	// refuses an add because no compatible space exists.
	ErrCapacityExceeded = errors.New("not enough storage space")

	// ErrPersistence wraps any store failure. The caller must not assume
	// partial application of the failed transaction.
	ErrPersistence = errors.New("persistence failure")

	// ErrStaleRequester is returned when the originating requester is no
	// longer connected after a suspension point. Callers drop it silently;
	// it is never a user-visible error.
	ErrStaleRequester = errors.New("requester no longer connected")
)

// persistence tags a store error with ErrPersistence while keeping the
// underlying chain inspectable.
func persistence(err error) error {
	return errors.Join(ErrPersistence, err)
}
