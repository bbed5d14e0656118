package consistency

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"hotelsync/internal/domain"
	"hotelsync/internal/models"
)

const tenant = "grand"

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func booking(id, roomID int64, status models.BookingStatus, in, out int) models.Booking {
	return models.Booking{
		ID:           id,
		TenantID:     tenant,
		RoomID:       roomID,
		GuestName:    "Guest",
		Adults:       1,
		CheckInDate:  day(in),
		CheckOutDate: day(out),
		Status:       status,
	}
}

func room(id int64, number string, occ models.OccupancyStatus, hk models.HousekeepingStatus) models.Room {
	return models.Room{
		ID:                 id,
		TenantID:           tenant,
		Number:             number,
		OccupancyStatus:    occ,
		HousekeepingStatus: hk,
	}
}

// memStore is an in-memory RoomStore and BookingStore.
type memStore struct {
	mu        sync.Mutex
	rooms     map[int64]models.Room
	bookings  []models.Booking
	updates   int
	failWrite map[int64]error
}

func newMemStore(rooms []models.Room, bookings []models.Booking) *memStore {
	s := &memStore{rooms: make(map[int64]models.Room), failWrite: make(map[int64]error)}
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	s.bookings = append(s.bookings, bookings...)
	return s
}

func (s *memStore) GetRooms(_ context.Context, filter models.RoomFilter) ([]models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Room
	for _, r := range s.rooms {
		if filter.TenantID == "" || r.TenantID == filter.TenantID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) GetRoom(_ context.Context, tenantID string, id int64) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok || r.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (s *memStore) UpdateRoom(_ context.Context, tenantID string, id int64, patch models.RoomPatch) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failWrite[id]; err != nil {
		return nil, err
	}
	r, ok := s.rooms[id]
	if !ok || r.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	if patch.OccupancyStatus != nil {
		r.OccupancyStatus = *patch.OccupancyStatus
	}
	if patch.HousekeepingStatus != nil {
		r.HousekeepingStatus = *patch.HousekeepingStatus
	}
	r.Version++
	s.rooms[id] = r
	s.updates++
	return &r, nil
}

func (s *memStore) GetBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if filter.TenantID != "" && b.TenantID != filter.TenantID {
			continue
		}
		if filter.RoomID != 0 && b.RoomID != filter.RoomID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) setBookingStatus(id int64, status models.BookingStatus) {
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			s.bookings[i].Status = status
		}
	}
}

type chanLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
	keys  []string
	err   error
}

func newChanLocker() *chanLocker {
	return &chanLocker{locks: make(map[string]chan struct{})}
}

func (l *chanLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type recordingBus struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBus) PublishJSON(eventType string, payload interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (b *recordingBus) ofType(eventType string) []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedEvent
	for _, e := range b.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

var errDiskFull = errors.New("disk full")
