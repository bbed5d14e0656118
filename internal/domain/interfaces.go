package domain

import (
	"context"

	"hotelsync/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type RoomStore interface {
	GetRooms(ctx context.Context, filter models.RoomFilter) ([]models.Room, error)
	GetRoom(ctx context.Context, tenantID string, id int64) (*models.Room, error)
	UpdateRoom(ctx context.Context, tenantID string, id int64, patch models.RoomPatch) (*models.Room, error)
}

type BookingStore interface {
	GetBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
}

// Repository is the full persistence surface used by the services.
type Repository interface {
	RoomStore
	BookingStore
	GetBooking(ctx context.Context, tenantID string, id int64) (*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	UpdateBookingWithVersion(ctx context.Context, booking *models.Booking) error
	UpdateBookingNotes(ctx context.Context, tenantID string, id int64, notes string) error
	SyncRooms(ctx context.Context, rooms []models.Room) error
	ListTenants(ctx context.Context) ([]string, error)
}

// RoomLocker serializes read-modify-write cycles on a single room.
type RoomLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ReconcileTrigger is notified once a booking mutation is durably stored.
type ReconcileTrigger interface {
	Trigger(ctx context.Context, tenantID string, roomID int64) error
}

type AuditLog interface {
	SaveReconcileRun(ctx context.Context, result *models.ReconcileResult) error
}
