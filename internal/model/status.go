package model

// ReservationStatus enumerates the lifecycle states of a reservation.
// PENDING is the only initial state.  COMPLETED, CANCELLED, EXPIRED and
// REJECTED are terminal: no transition ever leaves them and rows in those
// states are retained as an immutable historical record.
type ReservationStatus string

const (
    StatusPending         ReservationStatus = "PENDING"
    StatusAwaitingPayment ReservationStatus = "AWAITING_PAYMENT"
    StatusConfirmed       ReservationStatus = "CONFIRMED"
    StatusInProgress      ReservationStatus = "IN_PROGRESS"
    StatusCompleted       ReservationStatus = "COMPLETED"
    StatusCancelled       ReservationStatus = "CANCELLED"
    StatusExpired         ReservationStatus = "EXPIRED"
    StatusRejected        ReservationStatus = "REJECTED"
)

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
    switch s {
    case StatusCompleted, StatusCancelled, StatusExpired, StatusRejected:
        return true
    }
    return false
}

// Active reports whether the status counts toward overlap blocking.  Only
// active reservations can make a window unavailable; terminal ones never do.
func (s ReservationStatus) Active() bool {
    switch s {
    case StatusPending, StatusAwaitingPayment, StatusConfirmed, StatusInProgress:
        return true
    }
    return false
}

// ActiveStatuses returns the set of statuses considered by the availability
// check, in a stable order suitable for building SQL IN clauses.
func ActiveStatuses() []ReservationStatus {
    return []ReservationStatus{StatusPending, StatusAwaitingPayment, StatusConfirmed, StatusInProgress}
}

// PricingMode selects the billing unit for a reservation.  Any partial unit
// is billed as a full unit.
type PricingMode string

const (
    ModeHourly  PricingMode = "HOURLY"
    ModeDaily   PricingMode = "DAILY"
    ModeWeekly  PricingMode = "WEEKLY"
    ModeMonthly PricingMode = "MONTHLY"
)

// Valid reports whether the pricing mode is one of the supported units.
func (m PricingMode) Valid() bool {
    switch m {
    case ModeHourly, ModeDaily, ModeWeekly, ModeMonthly:
        return true
    }
    return false
}
