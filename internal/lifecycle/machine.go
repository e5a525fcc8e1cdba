// Package lifecycle enforces the legal state transitions of a reservation
// and the side effects attached to each transition. The table here is the
// single source of truth: the engine, the HTTP handlers and the background
// expiry worker all drive changes through Apply, and the store applies the
// resulting outcome as one atomic conditional update.
package lifecycle

import (
    "time"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// Event names a transition request against a reservation.
type Event string

const (
    EventApprove          Event = "approve"
    EventReject           Event = "reject"
    EventCancel           Event = "cancel"
    EventExpire           Event = "expire"
    EventPaymentSucceeded Event = "payment_succeeded"
    EventPaymentFailed    Event = "payment_failed"
    EventCheckIn          Event = "check_in"
    EventCheckOut         Event = "check_out"
)

// SystemActor is the actor id reserved for system-driven events: expiry
// timeouts and payment gateway callbacks. No real user has id 0.
const SystemActor uint64 = 0

// Outcome describes what a legal transition does. The store must apply the
// status change, the spot-count delta and the timestamps in one
// transaction; the engine performs the refund and notifications after that
// transaction commits.
type Outcome struct {
    From           model.ReservationStatus
    To             model.ReservationStatus
    SpotDelta      int  // adjustment to the space's available-spot counter
    Refund         bool // trigger the refund collaborator after commit
    SetCheckIn     bool // stamp check-in time on this transition
    SetCheckOut    bool // stamp check-out time on this transition
    NotifyMember   bool
    NotifyOwner    bool
}

// edge is a row of the transition table.
type edge struct {
    to          model.ReservationStatus
    spotDelta   int
    refund      bool
    setCheckIn  bool
    setCheckOut bool
}

// transitions maps (current state, event) to the transition's effect.
// Events absent for a state are illegal from that state; terminal states
// have no rows at all.
var transitions = map[model.ReservationStatus]map[Event]edge{
    model.StatusPending: {
        EventApprove: {to: model.StatusAwaitingPayment},
        EventReject:  {to: model.StatusRejected},
        EventCancel:  {to: model.StatusCancelled},
        EventExpire:  {to: model.StatusExpired},
    },
    model.StatusAwaitingPayment: {
        EventPaymentSucceeded: {to: model.StatusConfirmed, spotDelta: -1},
        EventPaymentFailed:    {to: model.StatusExpired},
        EventCancel:           {to: model.StatusCancelled},
    },
    model.StatusConfirmed: {
        EventCheckIn: {to: model.StatusInProgress, setCheckIn: true},
        EventCancel:  {to: model.StatusCancelled, spotDelta: 1, refund: true},
    },
    model.StatusInProgress: {
        EventCheckOut: {to: model.StatusCompleted, spotDelta: 1, setCheckOut: true},
    },
}

// Apply validates that actorID may request event against res at time now
// and returns the transition outcome. It never mutates the reservation.
//
// Authorization runs before the state lookup: a caller who is neither the
// requester nor the space owner (as applicable to the event) receives
// model.ErrForbidden regardless of the reservation's current state. An
// event not listed for the current state, including anything attempted
// from a terminal state, yields model.ErrIllegalTransition. Check-in is
// additionally rejected with model.ErrOutsideWindow before the start or
// after the end of the window; check-in exactly at the start succeeds.
func Apply(res *model.Reservation, event Event, actorID uint64, now time.Time) (Outcome, error) {
    if err := authorize(res, event, actorID); err != nil {
        return Outcome{}, err
    }

    e, ok := transitions[res.Status][event]
    if !ok {
        return Outcome{}, model.ErrIllegalTransition
    }

    switch event {
    case EventCheckIn:
        if now.Before(res.StartTime) || now.After(res.EndTime) {
            return Outcome{}, model.ErrOutsideWindow
        }
    case EventCancel:
        // A confirmed reservation can only be cancelled before its window
        // starts; afterwards the member must check in and out normally.
        if res.Status == model.StatusConfirmed && !now.Before(res.StartTime) {
            return Outcome{}, model.ErrIllegalTransition
        }
    }

    out := Outcome{
        From:        res.Status,
        To:          e.to,
        SpotDelta:   e.spotDelta,
        Refund:      e.refund,
        SetCheckIn:  e.setCheckIn,
        SetCheckOut: e.setCheckOut,
    }
    setNotifications(&out, res, event, actorID)
    return out, nil
}

// authorize checks who may request each event. System events are reserved
// for the SystemActor so that no user can expire a reservation or forge a
// payment callback.
func authorize(res *model.Reservation, event Event, actorID uint64) error {
    switch event {
    case EventApprove, EventReject:
        if actorID != res.OwnerID {
            return model.ErrForbidden
        }
    case EventCancel:
        if actorID != res.MemberID && actorID != res.OwnerID {
            return model.ErrForbidden
        }
    case EventCheckIn, EventCheckOut:
        if actorID != res.MemberID {
            return model.ErrForbidden
        }
    case EventExpire, EventPaymentSucceeded, EventPaymentFailed:
        if actorID != SystemActor {
            return model.ErrForbidden
        }
    default:
        return model.ErrIllegalTransition
    }
    return nil
}

// setNotifications fills the notification targets per the side-effect
// column of the transition table. Cancel notifies the other party; all
// other member-facing events notify the member, and operational events on
// the space notify the owner.
func setNotifications(out *Outcome, res *model.Reservation, event Event, actorID uint64) {
    switch event {
    case EventApprove, EventReject, EventExpire, EventPaymentSucceeded, EventPaymentFailed:
        out.NotifyMember = true
    case EventCheckIn, EventCheckOut:
        out.NotifyOwner = true
    case EventCancel:
        if actorID == res.MemberID {
            out.NotifyOwner = true
        } else {
            out.NotifyMember = true
        }
    }
}
