package engine

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/parking-space-reservation/internal/model"
)

// memStore is an in-memory Store used by the engine tests. A single mutex
// stands in for the per-space serialization the MySQL store gets from
// SELECT ... FOR UPDATE, which is exactly the emulation the engine permits
// for backends without transactional isolation.
type memStore struct {
    mu           sync.Mutex
    spaces       map[uint64]*model.ParkingSpace
    reservations map[uint64]*model.Reservation
    nextID       uint64
}

func newMemStore() *memStore {
    return &memStore{
        spaces:       make(map[uint64]*model.ParkingSpace),
        reservations: make(map[uint64]*model.Reservation),
        nextID:       1,
    }
}

func (s *memStore) addSpace(sp *model.ParkingSpace) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.spaces[sp.ID] = sp
}

func (s *memStore) GetSpace(ctx context.Context, id uint64) (*model.ParkingSpace, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    sp, ok := s.spaces[id]
    if !ok {
        return nil, model.ErrNotFound
    }
    cp := *sp
    return &cp, nil
}

func (s *memStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    res, ok := s.reservations[id]
    if !ok {
        return nil, model.ErrNotFound
    }
    cp := *res
    return &cp, nil
}

func (s *memStore) GetReservationByReference(ctx context.Context, ref string) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, res := range s.reservations {
        if res.Reference == ref {
            cp := *res
            return &cp, nil
        }
    }
    return nil, model.ErrNotFound
}

func (s *memStore) ListByMember(ctx context.Context, memberID uint64, f ListFilter) ([]*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []*model.Reservation
    for _, res := range s.reservations {
        if res.MemberID != memberID {
            continue
        }
        if f.SpaceID != 0 && res.SpaceID != f.SpaceID {
            continue
        }
        if f.Status != "" && res.Status != f.Status {
            continue
        }
        cp := *res
        out = append(out, &cp)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
    if f.Limit > 0 && len(out) > f.Limit {
        out = out[:f.Limit]
    }
    return out, nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerID uint64, f ListFilter) ([]*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []*model.Reservation
    for _, res := range s.reservations {
        if res.OwnerID != ownerID {
            continue
        }
        if f.SpaceID != 0 && res.SpaceID != f.SpaceID {
            continue
        }
        if f.Status != "" && res.Status != f.Status {
            continue
        }
        cp := *res
        out = append(out, &cp)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
    if f.Limit > 0 && len(out) > f.Limit {
        out = out[:f.Limit]
    }
    return out, nil
}

func (s *memStore) CreateReservation(ctx context.Context, res *model.Reservation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, other := range s.reservations {
        if other.SpaceID != res.SpaceID || !other.Status.Active() {
            continue
        }
        if other.Overlaps(res.StartTime, res.EndTime) {
            return model.ErrSlotUnavailable
        }
    }
    now := time.Now().UTC()
    res.ID = s.nextID
    s.nextID++
    res.CreatedAt = now
    res.UpdatedAt = now
    cp := *res
    s.reservations[res.ID] = &cp
    return nil
}

func (s *memStore) ApplyTransition(ctx context.Context, upd TransitionUpdate) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    res, ok := s.reservations[upd.ReservationID]
    if !ok {
        return nil, model.ErrNotFound
    }
    if res.Status != upd.From {
        return nil, model.ErrIllegalTransition
    }
    if upd.SpotDelta != 0 {
        sp, ok := s.spaces[res.SpaceID]
        if !ok {
            return nil, model.ErrNotFound
        }
        next := sp.AvailableSpots + upd.SpotDelta
        if next < 0 || next > sp.TotalSpots {
            return nil, model.ErrStorageConflict
        }
        sp.AvailableSpots = next
    }
    res.Status = upd.To
    res.UpdatedAt = time.Now().UTC()
    if upd.CheckInAt != nil {
        res.CheckInAt = upd.CheckInAt
    }
    if upd.CheckOutAt != nil {
        res.CheckOutAt = upd.CheckOutAt
    }
    if upd.Reason != nil {
        res.CancelReason = upd.Reason
    }
    cp := *res
    return &cp, nil
}

func (s *memStore) ListExpirable(ctx context.Context, pendingBefore, paymentBefore time.Time) ([]*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var out []*model.Reservation
    for _, res := range s.reservations {
        switch res.Status {
        case model.StatusPending:
            if !res.CreatedAt.After(pendingBefore) {
                cp := *res
                out = append(out, &cp)
            }
        case model.StatusAwaitingPayment:
            if !res.UpdatedAt.After(paymentBefore) {
                cp := *res
                out = append(out, &cp)
            }
        }
    }
    return out, nil
}

// backdate rewrites a reservation's bookkeeping timestamps so expiry tests
// can age rows without sleeping.
func (s *memStore) backdate(id uint64, t time.Time) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if res, ok := s.reservations[id]; ok {
        res.CreatedAt = t
        res.UpdatedAt = t
    }
}

func (s *memStore) availableSpots(spaceID uint64) int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.spaces[spaceID].AvailableSpots
}
