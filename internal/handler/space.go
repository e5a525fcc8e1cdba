package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/parking-space-reservation/internal/model"
    "github.com/iliyamo/parking-space-reservation/internal/repository"
)

// SpaceHandler serves the public, unauthenticated space endpoints: the
// space detail page and the availability preview a member checks before
// booking. Both are read-only and sit behind the response cache
// middleware; the authoritative availability decision is always re-made
// inside the create transaction.
type SpaceHandler struct {
    Spaces *repository.ReservationRepo
}

// NewSpaceHandler constructs a SpaceHandler.
func NewSpaceHandler(spaces *repository.ReservationRepo) *SpaceHandler {
    if spaces == nil {
        panic("nil repository passed to NewSpaceHandler")
    }
    return &SpaceHandler{Spaces: spaces}
}

type spaceResp struct {
    ID             uint64 `json:"id"`
    Name           string `json:"name"`
    Address        string `json:"address"`
    HourlyRate     string `json:"hourly_rate"`
    DailyRate      string `json:"daily_rate"`
    WeeklyRate     string `json:"weekly_rate"`
    MonthlyRate    string `json:"monthly_rate"`
    IsActive       bool   `json:"is_active"`
    TotalSpots     int    `json:"total_spots"`
    AvailableSpots int    `json:"available_spots"`
}

func toSpaceResp(sp *model.ParkingSpace) spaceResp {
    return spaceResp{
        ID:             sp.ID,
        Name:           sp.Name,
        Address:        sp.Address,
        HourlyRate:     sp.Rates.HourlyRate.String(),
        DailyRate:      sp.Rates.DailyRate.String(),
        WeeklyRate:     sp.Rates.WeeklyRate.String(),
        MonthlyRate:    sp.Rates.MonthlyRate.String(),
        IsActive:       sp.IsActive,
        TotalSpots:     sp.TotalSpots,
        AvailableSpots: sp.AvailableSpots,
    }
}

// Get handles GET /v1/spaces/:id.
func (h *SpaceHandler) Get(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
    }
    sp, err := h.Spaces.GetSpace(c.Request().Context(), id)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, toSpaceResp(sp))
}

// Availability handles GET /v1/spaces/:id/availability?start=...&end=...
// with RFC3339 bounds. The answer is a snapshot, not a hold: the window
// can still be taken between the preview and the booking.
func (h *SpaceHandler) Availability(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid space id"})
    }
    start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "start must be RFC3339"})
    }
    end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "end must be RFC3339"})
    }
    if !end.After(start) {
        return domainError(c, model.ErrInvalidWindow)
    }

    ctx := c.Request().Context()
    sp, err := h.Spaces.GetSpace(ctx, id)
    if err != nil {
        return domainError(c, err)
    }
    free, err := h.Spaces.Available(ctx, id, start.UTC(), end.UTC(), 0)
    if err != nil {
        return domainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "space_id":  sp.ID,
        "start":     start.UTC().Format(time.RFC3339),
        "end":       end.UTC().Format(time.RFC3339),
        "available": free && sp.IsActive,
    })
}
