// Package payment holds the gateway collaborator the engine charges and
// refunds through. The provider integration is opaque to the rest of the
// service: the engine only sees success/failure plus a transaction id.
package payment

import (
    "context"
    "log"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/parking-space-reservation/internal/engine"
    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// Gateway implements engine.PaymentGateway. Deployments without a real
// provider run it in approve-everything mode; DeclineAbove gives local and
// test environments a deterministic way to exercise the declined-charge
// path without talking to a provider.
type Gateway struct {
    // DeclineAbove, when set, declines any charge strictly greater than
    // this amount.
    DeclineAbove *decimal.Decimal
}

// New returns a gateway that approves every charge.
func New() *Gateway { return &Gateway{} }

// Charge executes the charge for a reservation's total and returns the
// provider transaction id. A decline is not an error: the engine reacts to
// ChargeResult.Success.
func (g *Gateway) Charge(ctx context.Context, res *model.Reservation) (engine.ChargeResult, error) {
    if g.DeclineAbove != nil && res.TotalAmount.GreaterThan(*g.DeclineAbove) {
        log.Printf("payment: declined charge of %s for reservation %s", res.TotalAmount, res.Reference)
        return engine.ChargeResult{Success: false}, nil
    }
    txn := uuid.NewString()
    log.Printf("payment: charged %s for reservation %s (txn %s)", res.TotalAmount, res.Reference, txn)
    return engine.ChargeResult{Success: true, TransactionID: txn}, nil
}

// Refund returns a charge to the member.
func (g *Gateway) Refund(ctx context.Context, p *model.Payment) error {
    log.Printf("payment: refunded %s (txn %s)", p.Amount, p.TransactionID)
    return nil
}
