package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// PaymentStatus enumerates the states of a payment record.
type PaymentStatus string

const (
    PaymentSucceeded PaymentStatus = "SUCCEEDED"
    PaymentFailed    PaymentStatus = "FAILED"
    PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Payment links a reservation to the charge executed by the external
// payment gateway. A reservation has at most one payment record once a
// charge is attempted; refunds update the same row.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation the charge belongs to (unique).
//  Amount        – charged amount, equal to the reservation total.
//  Status        – SUCCEEDED, FAILED or REFUNDED.
//  TransactionID – opaque gateway transaction reference.
//  CreatedAt     – when the charge was attempted.
//  RefundedAt    – when the refund completed (nullable).
type Payment struct {
    ID            uint64          // payments.id
    ReservationID uint64          // payments.reservation_id
    Amount        decimal.Decimal // payments.amount
    Status        PaymentStatus   // payments.status
    TransactionID string          // payments.transaction_id
    CreatedAt     time.Time       // payments.created_at
    RefundedAt    *time.Time      // payments.refunded_at (nullable)
}
