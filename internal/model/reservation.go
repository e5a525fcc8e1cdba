package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Reservation records a member's booking of a parking space for a time
// window. The window is immutable once created; cancellation, rejection and
// expiry only change the status. Price fields are computed exactly once at
// creation and never altered by later transitions.
//
// Fields:
//  ID             – primary key identifier.
//  Reference      – short human-shareable code, unique, usable for lookup.
//  MemberID       – user who requested the reservation.
//  SpaceID        – parking space being reserved.
//  OwnerID        – the space's owner, denormalized for authorization.
//  StartTime      – window start (UTC, inclusive).
//  EndTime        – window end (UTC, exclusive; strictly after StartTime).
//  PricingMode    – billing unit (HOURLY/DAILY/WEEKLY/MONTHLY).
//  Vehicle*       – informational vehicle descriptor.
//  BaseAmount     – rate × billed units.
//  TaxAmount      – tax on the base amount.
//  ServiceFee     – platform fee on the base amount.
//  DiscountAmount – resolved discount, clamped so the total is never negative.
//  TotalAmount    – base + tax + fee − discount.
//  DiscountCode   – code supplied at creation, if any.
//  Status         – current lifecycle state.
//  CancelReason   – reason recorded on reject/cancel (nullable).
//  CheckInAt      – set once, on the transition into IN_PROGRESS.
//  CheckOutAt     – set once, on the transition into COMPLETED.
//  CreatedAt      – creation timestamp (immutable).
//  UpdatedAt      – last status change timestamp.
type Reservation struct {
    ID             uint64            // reservations.id
    Reference      string            // reservations.reference
    MemberID       uint64            // reservations.member_id
    SpaceID        uint64            // reservations.space_id
    OwnerID        uint64            // reservations.owner_id
    StartTime      time.Time         // reservations.start_time
    EndTime        time.Time         // reservations.end_time
    PricingMode    PricingMode       // reservations.pricing_mode
    VehicleType    string            // reservations.vehicle_type
    VehiclePlate   string            // reservations.vehicle_plate
    VehicleModel   string            // reservations.vehicle_model
    BaseAmount     decimal.Decimal   // reservations.base_amount
    TaxAmount      decimal.Decimal   // reservations.tax_amount
    ServiceFee     decimal.Decimal   // reservations.service_fee
    DiscountAmount decimal.Decimal   // reservations.discount_amount
    TotalAmount    decimal.Decimal   // reservations.total_amount
    DiscountCode   *string           // reservations.discount_code (nullable)
    Status         ReservationStatus // reservations.status
    CancelReason   *string           // reservations.cancel_reason (nullable)
    CheckInAt      *time.Time        // reservations.check_in_at (nullable)
    CheckOutAt     *time.Time        // reservations.check_out_at (nullable)
    CreatedAt      time.Time         // reservations.created_at
    UpdatedAt      time.Time         // reservations.updated_at
}

// Overlaps reports whether the reservation's window shares any instant with
// [start, end) under half-open interval semantics: a reservation ending
// exactly when another begins does not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
    return r.StartTime.Before(end) && start.Before(r.EndTime)
}
