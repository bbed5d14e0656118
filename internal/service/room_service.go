package service

import (
	"context"
	"fmt"

	"hotelsync/internal/config"
	"hotelsync/internal/consistency"
	"hotelsync/internal/domain"
	"hotelsync/internal/models"

	"github.com/rs/zerolog"
)

type RoomService struct {
	repo    domain.Repository
	locker  domain.RoomLocker
	trigger domain.ReconcileTrigger
	logger  *zerolog.Logger
}

func NewRoomService(repo domain.Repository, locker domain.RoomLocker, trigger domain.ReconcileTrigger, logger *zerolog.Logger) *RoomService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RoomService{repo: repo, locker: locker, trigger: trigger, logger: logger}
}

// SyncInventory upserts the configured rooms. Existing statuses are kept.
func (s *RoomService) SyncInventory(ctx context.Context, rooms []models.Room) error {
	if err := config.ValidateRooms(rooms); err != nil {
		return &domain.ValidationError{Messages: []string{err.Error()}}
	}
	if len(rooms) == 0 {
		return nil
	}
	return s.repo.SyncRooms(ctx, rooms)
}

func (s *RoomService) ListRooms(ctx context.Context, tenantID string) ([]models.Room, error) {
	return s.repo.GetRooms(ctx, models.RoomFilter{TenantID: tenantID})
}

// SetOutOfService toggles the manual override that takes a room off sale.
// Clearing it hands the room back to the reconciler; a room that was out of
// order comes back DIRTY so it is inspected before the next guest.
func (s *RoomService) SetOutOfService(ctx context.Context, tenantID string, roomID int64, on bool) (*models.Room, error) {
	unlock, err := s.locker.Lock(ctx, consistency.RoomLockKey(tenantID, roomID))
	if err != nil {
		return nil, fmt.Errorf("lock room: %w", err)
	}

	room, err := s.repo.GetRoom(ctx, tenantID, roomID)
	if err != nil {
		unlock()
		return nil, err
	}

	var patch models.RoomPatch
	switch {
	case on && room.OccupancyStatus != models.OccupancyOutOfService:
		occ := models.OccupancyOutOfService
		patch.OccupancyStatus = &occ
	case !on:
		if room.OccupancyStatus == models.OccupancyOutOfService {
			occ := models.OccupancyAvailable
			patch.OccupancyStatus = &occ
		}
		if room.HousekeepingStatus == models.HousekeepingOutOfOrder {
			hk := models.HousekeepingDirty
			patch.HousekeepingStatus = &hk
		}
	}

	updated, err := s.repo.UpdateRoom(ctx, tenantID, roomID, patch)
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant", tenantID).
		Int64("room_id", roomID).
		Str("room", updated.Number).
		Bool("out_of_service", on).
		Msg("room service override changed")

	if !on && s.trigger != nil {
		if err := s.trigger.Trigger(ctx, tenantID, roomID); err != nil {
			s.logger.Warn().Err(err).Int64("room_id", roomID).Msg("reconcile trigger error")
		}
	}
	return updated, nil
}
