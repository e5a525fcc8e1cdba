package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// RateSchedule carries the per-unit rates of a parking space for each
// pricing mode. Rates are fixed-point decimals; monetary arithmetic never
// goes through floating point because totals are audited and must round
// identically everywhere.
type RateSchedule struct {
    HourlyRate  decimal.Decimal // parking_spaces.hourly_rate
    DailyRate   decimal.Decimal // parking_spaces.daily_rate
    WeeklyRate  decimal.Decimal // parking_spaces.weekly_rate
    MonthlyRate decimal.Decimal // parking_spaces.monthly_rate
}

// ParkingSpace represents a listed parking space as stored in the
// `parking_spaces` table. Space CRUD and search live outside this service;
// the engine only reads spaces to authorize and price reservations, and
// adjusts AvailableSpots atomically with status transitions.
//
// Fields:
//  ID             – primary key identifier.
//  OwnerID        – user who listed the space.
//  Name           – human readable label.
//  Address        – street address shown to members.
//  Rates          – per-unit rate schedule.
//  IsActive       – whether the space currently accepts reservations.
//  TotalSpots     – physical capacity of the space.
//  AvailableSpots – spots not held by a confirmed or in-progress reservation.
//  CreatedAt      – creation timestamp.
//  UpdatedAt      – last update timestamp.
type ParkingSpace struct {
    ID             uint64       // parking_spaces.id
    OwnerID        uint64       // parking_spaces.owner_id
    Name           string       // parking_spaces.name
    Address        string       // parking_spaces.address
    Rates          RateSchedule // rate columns
    IsActive       bool         // parking_spaces.is_active
    TotalSpots     int          // parking_spaces.total_spots
    AvailableSpots int          // parking_spaces.available_spots
    CreatedAt      time.Time    // parking_spaces.created_at
    UpdatedAt      time.Time    // parking_spaces.updated_at
}
