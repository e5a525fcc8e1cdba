package engine

import (
    "context"
    "errors"
    "log"
    "time"

    "github.com/iliyamo/parking-space-reservation/internal/lifecycle"
    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// ExpiryWorker is the background timer collaborator that expires stale
// reservations: PENDING requests the owner never answered and
// AWAITING_PAYMENT reservations whose payment deadline passed. It issues
// ordinary transition calls through the engine, so it needs no locking of
// its own; the compare-and-set transition contract is already safe under
// concurrent callers.
type ExpiryWorker struct {
    engine     *Engine
    store      Store
    pendingTTL time.Duration // how long a PENDING request may wait for approval
    paymentTTL time.Duration // how long AWAITING_PAYMENT may wait for a charge
    interval   time.Duration // sweep period
}

// NewExpiryWorker builds a worker sweeping every interval.
func NewExpiryWorker(eng *Engine, store Store, pendingTTL, paymentTTL, interval time.Duration) *ExpiryWorker {
    return &ExpiryWorker{
        engine:     eng,
        store:      store,
        pendingTTL: pendingTTL,
        paymentTTL: paymentTTL,
        interval:   interval,
    }
}

// Run sweeps until ctx is cancelled. It is intended to be launched as a
// goroutine from the composition root.
func (w *ExpiryWorker) Run(ctx context.Context) {
    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            w.Sweep(ctx)
        }
    }
}

// Sweep runs one expiry pass. Losing a transition race to a concurrent
// approval or cancellation is expected and not an error; everything else
// is logged and the sweep continues with the next row.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
    now := w.engine.now().UTC()
    expirable, err := w.store.ListExpirable(ctx, now.Add(-w.pendingTTL), now.Add(-w.paymentTTL))
    if err != nil {
        log.Printf("expiry: list expirable reservations: %v", err)
        return
    }
    for _, res := range expirable {
        event := lifecycle.EventExpire
        if res.Status == model.StatusAwaitingPayment {
            event = lifecycle.EventPaymentFailed
        }
        if _, err := w.engine.Transition(ctx, res.ID, event, lifecycle.SystemActor, ""); err != nil {
            if errors.Is(err, model.ErrIllegalTransition) {
                continue // someone else moved it first
            }
            log.Printf("expiry: expire reservation %d: %v", res.ID, err)
        }
    }
}
