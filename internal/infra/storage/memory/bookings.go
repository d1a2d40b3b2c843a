package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"stayvibe/internal/app/policies"
	"stayvibe/internal/domain/availability"
	"stayvibe/internal/domain/booking"
)

// BookingStore is the in-memory booking service, used in dev and in tests.
// Records are stored by value so callers cannot mutate past the version
// check.
type BookingStore struct {
	mu    sync.RWMutex
	items map[booking.ID]booking.Record
	clock func() time.Time
}

var (
	_ policies.BookingService = (*BookingStore)(nil)
	_ policies.BookingLister  = (*BookingStore)(nil)
)

func NewBookingStore(clock func() time.Time) *BookingStore {
	if clock == nil {
		clock = time.Now
	}
	return &BookingStore{
		items: make(map[booking.ID]booking.Record),
		clock: clock,
	}
}

// Reservations projects every booking for the unit, cancelled included.
func (s *BookingStore) Reservations(ctx context.Context, unitID string) ([]availability.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []availability.Reservation
	for _, rec := range s.items {
		if rec.UnitID != unitID {
			continue
		}
		out = append(out, rec.Reservation())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out, nil
}

// CreateOrConfirm upserts with optimistic versioning: a stale writer loses.
func (s *BookingStore) CreateOrConfirm(ctx context.Context, rec *booking.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.items[rec.ID]; ok && current.Version != rec.Version {
		return booking.ErrInvalidState
	}
	rec.Version++
	stored := *rec
	stored.ClearEvents()
	s.items[rec.ID] = stored
	return nil
}

func (s *BookingStore) Status(ctx context.Context, id booking.ID) (*booking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	copied := rec
	return &copied, nil
}

func (s *BookingStore) Cancel(ctx context.Context, id booking.ID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[id]
	if !ok {
		return booking.ErrNotFound
	}
	if err := rec.Cancel(reason, s.clock()); err != nil {
		return err
	}
	rec.Version++
	rec.ClearEvents()
	s.items[id] = rec
	return nil
}

// List returns bookings matching the filter, newest first.
func (s *BookingStore) List(ctx context.Context, filter policies.ListFilter) ([]*booking.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*booking.Record
	for _, rec := range s.items {
		if filter.UnitID != "" && rec.UnitID != filter.UnitID {
			continue
		}
		if filter.GuestID != "" && rec.GuestID != filter.GuestID {
			continue
		}
		if len(filter.States) > 0 && !slices.Contains(filter.States, rec.State) {
			continue
		}
		copied := rec
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
