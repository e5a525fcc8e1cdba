package engine

import (
    "context"
    "time"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// Store is the persistence boundary of the engine. Every method is atomic
// with respect to concurrent callers: CreateReservation runs the overlap
// check and the insert in one transaction serialized per space, and
// ApplyTransition performs a compare-and-set on the current status together
// with the coupled spot-counter adjustment. The engine uses this contract
// without knowing the storage technology.
//
// Methods return model.ErrNotFound for missing rows, model.ErrSlotUnavailable
// for overlap losses, model.ErrIllegalTransition for a lost compare-and-set
// and model.ErrStorageConflict for transient transaction aborts.
type Store interface {
    // GetSpace loads a parking space by id.
    GetSpace(ctx context.Context, id uint64) (*model.ParkingSpace, error)

    // GetReservation loads a reservation by id.
    GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)

    // GetReservationByReference loads a reservation by its reference code.
    GetReservationByReference(ctx context.Context, ref string) (*model.Reservation, error)

    // ListByMember returns a member's reservations, newest first.
    ListByMember(ctx context.Context, memberID uint64, f ListFilter) ([]*model.Reservation, error)

    // ListByOwner returns the reservations targeting spaces owned by
    // ownerID, newest first.
    ListByOwner(ctx context.Context, ownerID uint64, f ListFilter) ([]*model.Reservation, error)

    // CreateReservation checks that no active reservation on the same
    // space overlaps res's window and inserts res in a single transaction.
    // On success it populates the generated id and timestamps.
    CreateReservation(ctx context.Context, res *model.Reservation) error

    // ApplyTransition atomically moves a reservation from upd.From to
    // upd.To, applying the spot delta and timestamps in the same
    // transaction, and returns the updated row. If the reservation is no
    // longer in upd.From the update is a no-op and
    // model.ErrIllegalTransition is returned.
    ApplyTransition(ctx context.Context, upd TransitionUpdate) (*model.Reservation, error)

    // ListExpirable returns reservations eligible for expiry: PENDING rows
    // created at or before pendingBefore and AWAITING_PAYMENT rows last
    // updated at or before paymentBefore.
    ListExpirable(ctx context.Context, pendingBefore, paymentBefore time.Time) ([]*model.Reservation, error)
}

// ListFilter narrows list queries. Zero values mean "no constraint".
type ListFilter struct {
    SpaceID uint64
    Status  model.ReservationStatus
    Limit   int
}

// TransitionUpdate is the atomic conditional update the store executes for
// one lifecycle transition.
type TransitionUpdate struct {
    ReservationID uint64
    From          model.ReservationStatus
    To            model.ReservationStatus
    SpotDelta     int        // applied to the space's available_spots in the same transaction
    CheckInAt     *time.Time // set when transitioning into IN_PROGRESS
    CheckOutAt    *time.Time // set when transitioning into COMPLETED
    Reason        *string    // recorded on reject/cancel
}

// PaymentLedger records and looks up payment rows. It is kept separate
// from Store because payments are written outside the transition
// transaction, after the gateway call completes.
type PaymentLedger interface {
    Record(ctx context.Context, p *model.Payment) error
    GetByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error)
    MarkRefunded(ctx context.Context, paymentID uint64) error
}

// ChargeResult is the gateway's answer to a charge attempt.
type ChargeResult struct {
    Success       bool
    TransactionID string
}

// PaymentGateway is the opaque external payment service. Both calls happen
// strictly outside storage transactions so no lock is held during network
// I/O.
type PaymentGateway interface {
    Charge(ctx context.Context, reservation *model.Reservation) (ChargeResult, error)
    Refund(ctx context.Context, payment *model.Payment) error
}

// Notifier is the fire-and-forget notification sink invoked after a state
// change commits. Failures are logged by the engine and never propagate.
type Notifier interface {
    Notify(ctx context.Context, userID uint64, event string, payload map[string]any) error
}
