// Package model defines the domain entities shared across the repository,
// engine and handler layers, together with the error taxonomy returned by
// reservation operations. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios with
// errors.Is, for example translating ErrForbidden into an HTTP 403
// response while ErrSlotUnavailable becomes a 409.
package model

import "errors"

// ErrInvalidWindow is returned when a requested time window is malformed:
// the end does not fall strictly after the start, or the start is not in
// the future at creation time.
var ErrInvalidWindow = errors.New("invalid time window")

// ErrNotFound is returned when a reservation or parking space lookup
// matches no row. Handlers should translate this into an HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrSpaceUnavailable is returned when the target parking space exists but
// is not accepting reservations (deactivated by its owner).
var ErrSpaceUnavailable = errors.New("parking space unavailable")

// ErrSlotUnavailable is returned when the requested window overlaps an
// active reservation on the same space. Retrying with the same window will
// deterministically fail again, so callers must not auto-retry.
var ErrSlotUnavailable = errors.New("time slot unavailable")

// ErrForbidden is returned when the caller is neither the requester nor
// the space owner as required by the attempted operation. The check runs
// before any state inspection, so an unauthorized caller learns nothing
// about the reservation's current state.
var ErrForbidden = errors.New("forbidden")

// ErrIllegalTransition is returned when an event is not legal from the
// reservation's current state, including any event attempted from a
// terminal state and the loser of two concurrent transition attempts.
var ErrIllegalTransition = errors.New("illegal transition")

// ErrOutsideWindow is returned when check-in is attempted before the
// window's start or after its end.
var ErrOutsideWindow = errors.New("outside reservation window")

// ErrPaymentFailed is returned when the payment gateway declines or fails
// a charge for a reservation awaiting payment.
var ErrPaymentFailed = errors.New("payment failed")

// ErrStorageConflict is returned when the storage layer aborts a
// transaction due to transient contention (deadlock, lock wait timeout).
// It is the only error the engine retries, because the whole operation is
// safe to re-run.
var ErrStorageConflict = errors.New("storage conflict")
