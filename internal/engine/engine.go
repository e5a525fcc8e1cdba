// Package engine implements the reservation engine: it validates creation
// requests, serializes the availability check with the insert through the
// Store contract, drives lifecycle transitions as atomic conditional
// updates, and talks to the payment and notification collaborators strictly
// after the transactional core commits.
package engine

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/parking-space-reservation/internal/lifecycle"
    "github.com/iliyamo/parking-space-reservation/internal/model"
    "github.com/iliyamo/parking-space-reservation/internal/pricing"
    "github.com/iliyamo/parking-space-reservation/internal/utils"
)

// maxConflictRetries bounds re-runs of an operation aborted with
// model.ErrStorageConflict. Contention losses are transient; logical
// failures such as ErrSlotUnavailable are never retried because retrying
// the same window deterministically fails again.
const maxConflictRetries = 3

// notification event names published through the Notifier.
const (
    NotifyRequested        = "reservation.requested"
    NotifyApproved         = "reservation.approved"
    NotifyRejected         = "reservation.rejected"
    NotifyCancelled        = "reservation.cancelled"
    NotifyExpired          = "reservation.expired"
    NotifyConfirmed        = "reservation.confirmed"
    NotifyPaymentFailed    = "reservation.payment_failed"
    NotifyCheckedIn        = "reservation.checked_in"
    NotifyCheckedOut       = "reservation.checked_out"
)

// Engine composes the price calculator, the lifecycle state machine and
// the Store into the reservation orchestrator. It is safe for concurrent
// use: all shared state lives behind the Store's transactional methods.
type Engine struct {
    store     Store
    payments  PaymentLedger
    gateway   PaymentGateway
    notifier  Notifier
    discounts pricing.DiscountPolicy

    now func() time.Time // overridable in tests
}

// New constructs an Engine. payments, gateway and notifier may be nil in
// contexts that never reach the corresponding collaborator (the expiry
// worker, some tests); discounts may be nil to disable discounts entirely.
func New(store Store, payments PaymentLedger, gateway PaymentGateway, notifier Notifier, discounts pricing.DiscountPolicy) *Engine {
    return &Engine{
        store:     store,
        payments:  payments,
        gateway:   gateway,
        notifier:  notifier,
        discounts: discounts,
        now:       time.Now,
    }
}

// CreateRequest carries everything needed to create a reservation.
type CreateRequest struct {
    MemberID     uint64
    SpaceID      uint64
    StartTime    time.Time
    EndTime      time.Time
    PricingMode  model.PricingMode
    DiscountCode string
    VehicleType  string
    VehiclePlate string
    VehicleModel string
}

// CreateReservation validates the window, prices it, and inserts the
// reservation in PENDING if no active reservation overlaps. The overlap
// check and the insert run in one transaction inside the Store; the owner
// notification happens after commit and is best-effort.
func (e *Engine) CreateReservation(ctx context.Context, req CreateRequest) (*model.Reservation, error) {
    now := e.now().UTC()
    start := req.StartTime.UTC()
    end := req.EndTime.UTC()
    if !end.After(start) || !start.After(now) {
        return nil, model.ErrInvalidWindow
    }
    if !req.PricingMode.Valid() {
        return nil, model.ErrInvalidWindow
    }

    space, err := e.store.GetSpace(ctx, req.SpaceID)
    if err != nil {
        return nil, err
    }
    if !space.IsActive {
        return nil, model.ErrSpaceUnavailable
    }

    quote, err := pricing.Quote(ctx, space.Rates, req.PricingMode, start, end, req.DiscountCode, e.discounts)
    if err != nil {
        return nil, err
    }

    var res *model.Reservation
    for attempt := 0; ; attempt++ {
        // A fresh reference per attempt: a conflict may have been a
        // duplicate reference collision rather than lock contention.
        ref, err := utils.NewReferenceCode()
        if err != nil {
            return nil, err
        }
        res = &model.Reservation{
            Reference:      ref,
            MemberID:       req.MemberID,
            SpaceID:        space.ID,
            OwnerID:        space.OwnerID,
            StartTime:      start,
            EndTime:        end,
            PricingMode:    req.PricingMode,
            VehicleType:    req.VehicleType,
            VehiclePlate:   req.VehiclePlate,
            VehicleModel:   req.VehicleModel,
            BaseAmount:     quote.Base,
            TaxAmount:      quote.Tax,
            ServiceFee:     quote.ServiceFee,
            DiscountAmount: quote.Discount,
            TotalAmount:    quote.Total,
            Status:         model.StatusPending,
        }
        if req.DiscountCode != "" {
            code := req.DiscountCode
            res.DiscountCode = &code
        }
        err = e.store.CreateReservation(ctx, res)
        if err == nil {
            break
        }
        if errors.Is(err, model.ErrStorageConflict) && attempt < maxConflictRetries-1 {
            continue
        }
        return nil, err
    }

    e.notify(ctx, space.OwnerID, NotifyRequested, res)
    return res, nil
}

// Transition drives one lifecycle event against a reservation on behalf of
// actorID. Authorization, the state-machine lookup and the window checks
// run in lifecycle.Apply; the status change itself is a compare-and-set in
// the Store, so of two concurrent attempts the loser receives
// model.ErrIllegalTransition and mutates nothing. reason is recorded on
// reject and cancel, and ignored otherwise.
func (e *Engine) Transition(ctx context.Context, reservationID uint64, event lifecycle.Event, actorID uint64, reason string) (*model.Reservation, error) {
    var (
        updated *model.Reservation
        outcome lifecycle.Outcome
    )
    for attempt := 0; ; attempt++ {
        res, err := e.store.GetReservation(ctx, reservationID)
        if err != nil {
            return nil, err
        }
        outcome, err = lifecycle.Apply(res, event, actorID, e.now().UTC())
        if err != nil {
            return nil, err
        }

        upd := TransitionUpdate{
            ReservationID: res.ID,
            From:          outcome.From,
            To:            outcome.To,
            SpotDelta:     outcome.SpotDelta,
        }
        if outcome.SetCheckIn {
            t := e.now().UTC()
            upd.CheckInAt = &t
        }
        if outcome.SetCheckOut {
            t := e.now().UTC()
            upd.CheckOutAt = &t
        }
        if reason != "" && (event == lifecycle.EventReject || event == lifecycle.EventCancel) {
            r := reason
            upd.Reason = &r
        }

        updated, err = e.store.ApplyTransition(ctx, upd)
        if err == nil {
            break
        }
        if errors.Is(err, model.ErrStorageConflict) && attempt < maxConflictRetries-1 {
            continue
        }
        return nil, err
    }

    if outcome.Refund {
        e.refund(ctx, updated)
    }
    if outcome.NotifyMember {
        e.notify(ctx, updated.MemberID, eventNotification(event), updated)
    }
    if outcome.NotifyOwner {
        e.notify(ctx, updated.OwnerID, eventNotification(event), updated)
    }
    return updated, nil
}

// ConfirmPayment executes the payment path for a reservation awaiting
// payment: charge through the gateway, record the payment row, then move
// the reservation to CONFIRMED (decrementing the spot counter in the same
// transaction). A declined charge moves the reservation to EXPIRED and
// returns model.ErrPaymentFailed. The gateway call happens strictly
// outside any storage transaction.
func (e *Engine) ConfirmPayment(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
    res, err := e.store.GetReservation(ctx, reservationID)
    if err != nil {
        return nil, err
    }
    if res.Status != model.StatusAwaitingPayment {
        return nil, model.ErrIllegalTransition
    }

    charge, err := e.gateway.Charge(ctx, res)
    if err != nil || !charge.Success {
        if _, terr := e.Transition(ctx, res.ID, lifecycle.EventPaymentFailed, lifecycle.SystemActor, ""); terr != nil {
            log.Printf("engine: expire after failed charge for reservation %d: %v", res.ID, terr)
        }
        return nil, model.ErrPaymentFailed
    }

    payment := &model.Payment{
        ReservationID: res.ID,
        Amount:        res.TotalAmount,
        Status:        model.PaymentSucceeded,
        TransactionID: charge.TransactionID,
    }
    if e.payments != nil {
        if err := e.payments.Record(ctx, payment); err != nil {
            log.Printf("engine: record payment for reservation %d: %v", res.ID, err)
        }
    }

    updated, err := e.Transition(ctx, res.ID, lifecycle.EventPaymentSucceeded, lifecycle.SystemActor, "")
    if err != nil {
        // Charged but the reservation moved on concurrently (e.g. it was
        // cancelled between the charge and the CAS). Give the money back
        // and mark the ledger row refunded.
        log.Printf("engine: confirm after charge for reservation %d: %v; refunding", res.ID, err)
        e.refund(ctx, res)
        return nil, err
    }
    return updated, nil
}

// GetReservation returns a reservation by id, visible only to its member,
// the space owner, or the system actor.
func (e *Engine) GetReservation(ctx context.Context, id uint64, actorID uint64) (*model.Reservation, error) {
    res, err := e.store.GetReservation(ctx, id)
    if err != nil {
        return nil, err
    }
    return authorizeView(res, actorID)
}

// GetReservationByReference is GetReservation keyed by the shareable
// reference code.
func (e *Engine) GetReservationByReference(ctx context.Context, ref string, actorID uint64) (*model.Reservation, error) {
    res, err := e.store.GetReservationByReference(ctx, ref)
    if err != nil {
        return nil, err
    }
    return authorizeView(res, actorID)
}

// ListForMember returns the reservations requested by memberID.
func (e *Engine) ListForMember(ctx context.Context, memberID uint64, f ListFilter) ([]*model.Reservation, error) {
    return e.store.ListByMember(ctx, memberID, f)
}

// ListForOwner returns the reservations against spaces owned by ownerID.
func (e *Engine) ListForOwner(ctx context.Context, ownerID uint64, f ListFilter) ([]*model.Reservation, error) {
    return e.store.ListByOwner(ctx, ownerID, f)
}

func authorizeView(res *model.Reservation, actorID uint64) (*model.Reservation, error) {
    if actorID != lifecycle.SystemActor && actorID != res.MemberID && actorID != res.OwnerID {
        return nil, model.ErrForbidden
    }
    return res, nil
}

// refund looks up the reservation's payment and triggers the refund
// collaborator. Refund failures are logged; the cancellation itself has
// already committed and stands.
func (e *Engine) refund(ctx context.Context, res *model.Reservation) {
    if e.payments == nil || e.gateway == nil {
        return
    }
    payment, err := e.payments.GetByReservation(ctx, res.ID)
    if err != nil {
        log.Printf("engine: load payment for refund of reservation %d: %v", res.ID, err)
        return
    }
    if err := e.gateway.Refund(ctx, payment); err != nil {
        log.Printf("engine: refund reservation %d: %v", res.ID, err)
        return
    }
    if err := e.payments.MarkRefunded(ctx, payment.ID); err != nil {
        log.Printf("engine: mark payment %d refunded: %v", payment.ID, err)
    }
}

// notify publishes a notification after a committed change. Failures are
// logged and never fail the triggering operation.
func (e *Engine) notify(ctx context.Context, userID uint64, event string, res *model.Reservation) {
    if e.notifier == nil {
        return
    }
    payload := map[string]any{
        "reservation_id": res.ID,
        "reference":      res.Reference,
        "space_id":       res.SpaceID,
        "status":         string(res.Status),
        "start_time":     res.StartTime.UTC().Format(time.RFC3339),
        "end_time":       res.EndTime.UTC().Format(time.RFC3339),
        "total_amount":   res.TotalAmount.String(),
    }
    if res.CancelReason != nil {
        payload["reason"] = *res.CancelReason
    }
    if err := e.notifier.Notify(ctx, userID, event, payload); err != nil {
        log.Printf("engine: notify %s for reservation %d: %v", event, res.ID, err)
    }
}

// eventNotification maps a lifecycle event to its notification type.
func eventNotification(event lifecycle.Event) string {
    switch event {
    case lifecycle.EventApprove:
        return NotifyApproved
    case lifecycle.EventReject:
        return NotifyRejected
    case lifecycle.EventCancel:
        return NotifyCancelled
    case lifecycle.EventExpire:
        return NotifyExpired
    case lifecycle.EventPaymentSucceeded:
        return NotifyConfirmed
    case lifecycle.EventPaymentFailed:
        return NotifyPaymentFailed
    case lifecycle.EventCheckIn:
        return NotifyCheckedIn
    case lifecycle.EventCheckOut:
        return NotifyCheckedOut
    }
    return "reservation.updated"
}
