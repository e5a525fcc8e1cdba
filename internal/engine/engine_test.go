package engine

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/parking-space-reservation/internal/lifecycle"
    "github.com/iliyamo/parking-space-reservation/internal/model"
    "github.com/iliyamo/parking-space-reservation/internal/pricing"
)

const (
    testMemberID = uint64(101)
    testOwnerID  = uint64(202)
    testSpaceID  = uint64(7)
)

type fakeGateway struct {
    mu         sync.Mutex
    failCharge bool
    charges    int
    refunds    int
    onCharge   func() // runs after the charge is counted, outside the lock
}

func (g *fakeGateway) Charge(ctx context.Context, res *model.Reservation) (ChargeResult, error) {
    g.mu.Lock()
    g.charges++
    n := g.charges
    fail := g.failCharge
    hook := g.onCharge
    g.mu.Unlock()
    if hook != nil {
        hook()
    }
    if fail {
        return ChargeResult{Success: false}, nil
    }
    return ChargeResult{Success: true, TransactionID: fmt.Sprintf("txn-%d", n)}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, p *model.Payment) error {
    g.mu.Lock()
    defer g.mu.Unlock()
    g.refunds++
    return nil
}

type fakeLedger struct {
    mu       sync.Mutex
    payments map[uint64]*model.Payment
    refunded map[uint64]bool
    nextID   uint64
}

func newFakeLedger() *fakeLedger {
    return &fakeLedger{payments: make(map[uint64]*model.Payment), refunded: make(map[uint64]bool), nextID: 1}
}

func (l *fakeLedger) Record(ctx context.Context, p *model.Payment) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    p.ID = l.nextID
    l.nextID++
    l.payments[p.ReservationID] = p
    return nil
}

func (l *fakeLedger) GetByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if p, ok := l.payments[reservationID]; ok {
        return p, nil
    }
    return nil, model.ErrNotFound
}

func (l *fakeLedger) MarkRefunded(ctx context.Context, paymentID uint64) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    l.refunded[paymentID] = true
    return nil
}

type notification struct {
    userID uint64
    event  string
}

type fakeNotifier struct {
    mu     sync.Mutex
    events []notification
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uint64, event string, payload map[string]any) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    n.events = append(n.events, notification{userID: userID, event: event})
    return nil
}

func (n *fakeNotifier) sent(event string, userID uint64) bool {
    n.mu.Lock()
    defer n.mu.Unlock()
    for _, e := range n.events {
        if e.event == event && e.userID == userID {
            return true
        }
    }
    return false
}

type harness struct {
    engine   *Engine
    store    *memStore
    gateway  *fakeGateway
    ledger   *fakeLedger
    notifier *fakeNotifier
    now      time.Time
}

func newHarness(t *testing.T) *harness {
    t.Helper()
    store := newMemStore()
    store.addSpace(&model.ParkingSpace{
        ID:      testSpaceID,
        OwnerID: testOwnerID,
        Name:    "Central Garage",
        Rates: model.RateSchedule{
            HourlyRate:  decimal.RequireFromString("10"),
            DailyRate:   decimal.RequireFromString("50"),
            WeeklyRate:  decimal.RequireFromString("250"),
            MonthlyRate: decimal.RequireFromString("800"),
        },
        IsActive:       true,
        TotalSpots:     5,
        AvailableSpots: 5,
    })
    gateway := &fakeGateway{}
    ledger := newFakeLedger()
    notifier := &fakeNotifier{}
    h := &harness{
        store:    store,
        gateway:  gateway,
        ledger:   ledger,
        notifier: notifier,
        now:      time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
    }
    h.engine = New(store, ledger, gateway, notifier, pricing.NoDiscount{})
    h.engine.now = func() time.Time { return h.now }
    return h
}

func (h *harness) createRequest(start, end time.Time) CreateRequest {
    return CreateRequest{
        MemberID:     testMemberID,
        SpaceID:      testSpaceID,
        StartTime:    start,
        EndTime:      end,
        PricingMode:  model.ModeHourly,
        VehicleType:  "car",
        VehiclePlate: "AB-123-CD",
    }
}

func TestCreateReservation(t *testing.T) {
    h := newHarness(t)
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(context.Background(), h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)
    require.Equal(t, model.StatusPending, res.Status)
    require.Equal(t, testOwnerID, res.OwnerID)
    require.True(t, strings.HasPrefix(res.Reference, "PK-"))
    require.True(t, res.BaseAmount.Equal(decimal.RequireFromString("20")))
    require.True(t, res.TaxAmount.Equal(decimal.RequireFromString("3.6")))
    require.True(t, res.ServiceFee.Equal(decimal.RequireFromString("1")))
    require.True(t, res.TotalAmount.Equal(decimal.RequireFromString("24.6")))
    require.True(t, h.notifier.sent(NotifyRequested, testOwnerID))
}

func TestCreateReservationValidation(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    // end not after start
    _, err := h.engine.CreateReservation(ctx, h.createRequest(start, start))
    require.ErrorIs(t, err, model.ErrInvalidWindow)

    // start in the past
    _, err = h.engine.CreateReservation(ctx, h.createRequest(h.now.Add(-time.Hour), start))
    require.ErrorIs(t, err, model.ErrInvalidWindow)

    // unknown space
    req := h.createRequest(start, start.Add(time.Hour))
    req.SpaceID = 999
    _, err = h.engine.CreateReservation(ctx, req)
    require.ErrorIs(t, err, model.ErrNotFound)

    // inactive space
    h.store.addSpace(&model.ParkingSpace{ID: 8, OwnerID: testOwnerID, IsActive: false})
    req = h.createRequest(start, start.Add(time.Hour))
    req.SpaceID = 8
    _, err = h.engine.CreateReservation(ctx, req)
    require.ErrorIs(t, err, model.ErrSpaceUnavailable)
}

func TestOverlapBlocksSecondBooking(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    nine := h.now.Add(time.Hour) // 09:00

    // 09:00–11:00 books fine.
    _, err := h.engine.CreateReservation(ctx, h.createRequest(nine, nine.Add(2*time.Hour)))
    require.NoError(t, err)

    // 10:00–12:00 overlaps the pending reservation.
    _, err = h.engine.CreateReservation(ctx, h.createRequest(nine.Add(time.Hour), nine.Add(3*time.Hour)))
    require.ErrorIs(t, err, model.ErrSlotUnavailable)

    // 11:00–12:00 is adjacent under half-open semantics and succeeds.
    _, err = h.engine.CreateReservation(ctx, h.createRequest(nine.Add(2*time.Hour), nine.Add(3*time.Hour)))
    require.NoError(t, err)
}

func TestTerminalReservationsDoNotBlock(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    first, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)
    _, err = h.engine.Transition(ctx, first.ID, lifecycle.EventCancel, testMemberID, "changed plans")
    require.NoError(t, err)

    // The cancelled reservation no longer blocks the same window.
    _, err = h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)
}

func TestConcurrentCreatesAdmitExactlyOne(t *testing.T) {
    h := newHarness(t)
    start := h.now.Add(time.Hour)

    const attempts = 32
    var (
        wg        sync.WaitGroup
        successes int64
        mu        sync.Mutex
    )
    for i := 0; i < attempts; i++ {
        wg.Add(1)
        go func(member uint64) {
            defer wg.Done()
            req := h.createRequest(start, start.Add(2*time.Hour))
            req.MemberID = member
            _, err := h.engine.CreateReservation(context.Background(), req)
            if err == nil {
                mu.Lock()
                successes++
                mu.Unlock()
            } else if !errors.Is(err, model.ErrSlotUnavailable) {
                t.Errorf("unexpected error: %v", err)
            }
        }(uint64(1000 + i))
    }
    wg.Wait()
    require.EqualValues(t, 1, successes)

    // And the invariant holds: no two active reservations on the space overlap.
    all, err := h.store.ListByOwner(context.Background(), testOwnerID, ListFilter{})
    require.NoError(t, err)
    for i := range all {
        for j := i + 1; j < len(all); j++ {
            if all[i].Status.Active() && all[j].Status.Active() {
                require.False(t, all[i].Overlaps(all[j].StartTime, all[j].EndTime))
            }
        }
    }
}

func TestFullLifecycle(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)

    // Owner approves.
    res, err = h.engine.Transition(ctx, res.ID, lifecycle.EventApprove, testOwnerID, "")
    require.NoError(t, err)
    require.Equal(t, model.StatusAwaitingPayment, res.Status)
    require.True(t, h.notifier.sent(NotifyApproved, testMemberID))

    // Payment confirms and takes a spot.
    res, err = h.engine.ConfirmPayment(ctx, res.ID)
    require.NoError(t, err)
    require.Equal(t, model.StatusConfirmed, res.Status)
    require.Equal(t, 4, h.store.availableSpots(testSpaceID))
    require.Equal(t, 1, h.gateway.charges)
    payment, err := h.ledger.GetByReservation(ctx, res.ID)
    require.NoError(t, err)
    require.True(t, payment.Amount.Equal(res.TotalAmount))

    // Check-in inside the window stamps the time once.
    h.now = start
    res, err = h.engine.Transition(ctx, res.ID, lifecycle.EventCheckIn, testMemberID, "")
    require.NoError(t, err)
    require.Equal(t, model.StatusInProgress, res.Status)
    require.NotNil(t, res.CheckInAt)
    require.True(t, h.notifier.sent(NotifyCheckedIn, testOwnerID))

    // Check-out completes and releases the spot.
    h.now = start.Add(90 * time.Minute)
    res, err = h.engine.Transition(ctx, res.ID, lifecycle.EventCheckOut, testMemberID, "")
    require.NoError(t, err)
    require.Equal(t, model.StatusCompleted, res.Status)
    require.NotNil(t, res.CheckOutAt)
    require.Equal(t, 5, h.store.availableSpots(testSpaceID))
}

func TestCancelConfirmedRefundsAndRestoresSpot(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)
    _, err = h.engine.Transition(ctx, res.ID, lifecycle.EventApprove, testOwnerID, "")
    require.NoError(t, err)
    _, err = h.engine.ConfirmPayment(ctx, res.ID)
    require.NoError(t, err)
    require.Equal(t, 4, h.store.availableSpots(testSpaceID))

    res, err = h.engine.Transition(ctx, res.ID, lifecycle.EventCancel, testMemberID, "found a closer spot")
    require.NoError(t, err)
    require.Equal(t, model.StatusCancelled, res.Status)
    require.Equal(t, 5, h.store.availableSpots(testSpaceID))
    require.Equal(t, 1, h.gateway.refunds)
    payment, err := h.ledger.GetByReservation(ctx, res.ID)
    require.NoError(t, err)
    require.True(t, h.ledger.refunded[payment.ID])
}

func TestDeclinedChargeExpiresReservation(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)
    _, err = h.engine.Transition(ctx, res.ID, lifecycle.EventApprove, testOwnerID, "")
    require.NoError(t, err)

    h.gateway.failCharge = true
    _, err = h.engine.ConfirmPayment(ctx, res.ID)
    require.ErrorIs(t, err, model.ErrPaymentFailed)

    res, err = h.engine.GetReservation(ctx, res.ID, testMemberID)
    require.NoError(t, err)
    require.Equal(t, model.StatusExpired, res.Status)
    require.Equal(t, 5, h.store.availableSpots(testSpaceID))
}

// conflictStore fails CreateReservation with ErrStorageConflict until the
// configured number of failures is consumed, counting every attempt.
type conflictStore struct {
    *memStore
    mu       sync.Mutex
    failures int
    creates  int
}

func (s *conflictStore) CreateReservation(ctx context.Context, res *model.Reservation) error {
    s.mu.Lock()
    s.creates++
    fail := s.failures > 0
    if fail {
        s.failures--
    }
    s.mu.Unlock()
    if fail {
        return model.ErrStorageConflict
    }
    return s.memStore.CreateReservation(ctx, res)
}

func TestCreateRetriesTransientConflict(t *testing.T) {
    h := newHarness(t)
    store := &conflictStore{memStore: h.store, failures: 2}
    h.engine = New(store, h.ledger, h.gateway, h.notifier, pricing.NoDiscount{})
    h.engine.now = func() time.Time { return h.now }
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(context.Background(), h.createRequest(start, start.Add(time.Hour)))
    require.NoError(t, err)
    require.Equal(t, model.StatusPending, res.Status)
    require.Equal(t, 3, store.creates)
}

func TestCreateGivesUpAfterPersistentConflict(t *testing.T) {
    h := newHarness(t)
    store := &conflictStore{memStore: h.store, failures: 10}
    h.engine = New(store, h.ledger, h.gateway, h.notifier, pricing.NoDiscount{})
    h.engine.now = func() time.Time { return h.now }
    start := h.now.Add(time.Hour)

    _, err := h.engine.CreateReservation(context.Background(), h.createRequest(start, start.Add(time.Hour)))
    require.ErrorIs(t, err, model.ErrStorageConflict)
    require.Equal(t, maxConflictRetries, store.creates)
    require.False(t, h.notifier.sent(NotifyRequested, testOwnerID))
}

func TestLostConfirmAfterChargeRefunds(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)
    _, err = h.engine.Transition(ctx, res.ID, lifecycle.EventApprove, testOwnerID, "")
    require.NoError(t, err)

    // The member cancels while the charge is in flight, so the payment
    // confirmation loses the compare-and-set after the money has moved.
    h.gateway.onCharge = func() {
        _, cerr := h.engine.Transition(ctx, res.ID, lifecycle.EventCancel, testMemberID, "")
        require.NoError(t, cerr)
    }
    _, err = h.engine.ConfirmPayment(ctx, res.ID)
    require.ErrorIs(t, err, model.ErrIllegalTransition)

    // The charge is refunded and the ledger row reflects it.
    require.Equal(t, 1, h.gateway.refunds)
    payment, err := h.ledger.GetByReservation(ctx, res.ID)
    require.NoError(t, err)
    require.True(t, h.ledger.refunded[payment.ID])

    got, err := h.engine.GetReservation(ctx, res.ID, testMemberID)
    require.NoError(t, err)
    require.Equal(t, model.StatusCancelled, got.Status)
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)

    // Owner approval races member cancellation; the compare-and-set lets
    // exactly one through.
    var wg sync.WaitGroup
    results := make([]error, 2)
    wg.Add(2)
    go func() {
        defer wg.Done()
        _, results[0] = h.engine.Transition(ctx, res.ID, lifecycle.EventApprove, testOwnerID, "")
    }()
    go func() {
        defer wg.Done()
        _, results[1] = h.engine.Transition(ctx, res.ID, lifecycle.EventCancel, testMemberID, "")
    }()
    wg.Wait()

    var ok, lost int
    for _, err := range results {
        switch {
        case err == nil:
            ok++
        case errors.Is(err, model.ErrIllegalTransition):
            lost++
        default:
            t.Fatalf("unexpected error: %v", err)
        }
    }
    require.Equal(t, 1, ok)
    require.Equal(t, 1, lost)
}

func TestTransitionAuthorization(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)

    _, err = h.engine.Transition(ctx, res.ID, lifecycle.EventApprove, testMemberID, "")
    require.ErrorIs(t, err, model.ErrForbidden)

    _, err = h.engine.Transition(ctx, res.ID, lifecycle.EventCancel, uint64(555), "")
    require.ErrorIs(t, err, model.ErrForbidden)

    _, err = h.engine.GetReservation(ctx, res.ID, uint64(555))
    require.ErrorIs(t, err, model.ErrForbidden)
}

func TestGetByReference(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)

    got, err := h.engine.GetReservationByReference(ctx, res.Reference, testOwnerID)
    require.NoError(t, err)
    require.Equal(t, res.ID, got.ID)

    _, err = h.engine.GetReservationByReference(ctx, "PK-00000000", testOwnerID)
    require.ErrorIs(t, err, model.ErrNotFound)
}

func TestRejectRecordsReason(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(time.Hour)

    res, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(2*time.Hour)))
    require.NoError(t, err)

    res, err = h.engine.Transition(ctx, res.ID, lifecycle.EventReject, testOwnerID, "space under maintenance")
    require.NoError(t, err)
    require.Equal(t, model.StatusRejected, res.Status)
    require.NotNil(t, res.CancelReason)
    require.Equal(t, "space under maintenance", *res.CancelReason)
    require.True(t, h.notifier.sent(NotifyRejected, testMemberID))
}

func TestExpirySweep(t *testing.T) {
    h := newHarness(t)
    ctx := context.Background()
    start := h.now.Add(2 * time.Hour)

    stale, err := h.engine.CreateReservation(ctx, h.createRequest(start, start.Add(time.Hour)))
    require.NoError(t, err)

    fresh := h.createRequest(start.Add(2*time.Hour), start.Add(3*time.Hour))
    fresh.MemberID = testMemberID + 1
    kept, err := h.engine.CreateReservation(ctx, fresh)
    require.NoError(t, err)

    unpaid := h.createRequest(start.Add(4*time.Hour), start.Add(5*time.Hour))
    unpaid.MemberID = testMemberID + 2
    overdue, err := h.engine.CreateReservation(ctx, unpaid)
    require.NoError(t, err)
    _, err = h.engine.Transition(ctx, overdue.ID, lifecycle.EventApprove, testOwnerID, "")
    require.NoError(t, err)

    // Age the stale request past the pending TTL and the approved one past
    // the payment deadline.
    h.store.backdate(stale.ID, h.now.Add(-time.Hour))
    h.store.backdate(overdue.ID, h.now.Add(-time.Hour))

    worker := NewExpiryWorker(h.engine, h.store, 30*time.Minute, 30*time.Minute, time.Minute)
    worker.Sweep(ctx)

    got, err := h.engine.GetReservation(ctx, stale.ID, testMemberID)
    require.NoError(t, err)
    require.Equal(t, model.StatusExpired, got.Status)

    got, err = h.engine.GetReservation(ctx, overdue.ID, testMemberID+2)
    require.NoError(t, err)
    require.Equal(t, model.StatusExpired, got.Status)

    got, err = h.engine.GetReservation(ctx, kept.ID, testMemberID+1)
    require.NoError(t, err)
    require.Equal(t, model.StatusPending, got.Status)
}
