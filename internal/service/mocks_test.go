package service

import (
	"context"
	"sync"

	"hotelsync/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetRooms(ctx context.Context, f models.RoomFilter) ([]models.Room, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Room), args.Error(1)
}
func (m *mockRepo) GetRoom(ctx context.Context, tenantID string, id int64) (*models.Room, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}
func (m *mockRepo) UpdateRoom(ctx context.Context, tenantID string, id int64, p models.RoomPatch) (*models.Room, error) {
	args := m.Called(ctx, tenantID, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}
func (m *mockRepo) GetBookings(ctx context.Context, f models.BookingFilter) ([]models.Booking, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockRepo) GetBooking(ctx context.Context, tenantID string, id int64) (*models.Booking, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// копия, чтобы сервис не менял ожидаемое значение
	b := *args.Get(0).(*models.Booking)
	return &b, args.Error(1)
}
func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) UpdateBookingWithVersion(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockRepo) UpdateBookingNotes(ctx context.Context, tenantID string, id int64, notes string) error {
	return m.Called(ctx, tenantID, id, notes).Error(0)
}
func (m *mockRepo) SyncRooms(ctx context.Context, rooms []models.Room) error {
	return m.Called(ctx, rooms).Error(0)
}
func (m *mockRepo) ListTenants(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockTrigger struct {
	mock.Mock
}

func (m *mockTrigger) Trigger(ctx context.Context, tenantID string, roomID int64) error {
	return m.Called(ctx, tenantID, roomID).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type countingLocker struct {
	mu      sync.Mutex
	keys    []string
	holding int
}

func (l *countingLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	l.holding++
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.holding--
	}, nil
}
