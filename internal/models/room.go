package models

import "time"

type Room struct {
	ID                 int64              `json:"id" yaml:"-"`
	TenantID           string             `json:"tenant_id" yaml:"tenant_id"`
	Number             string             `json:"number" yaml:"number"`
	Floor              string             `json:"floor" yaml:"floor"`
	RoomTypeID         int64              `json:"room_type_id" yaml:"room_type_id"`
	OccupancyStatus    OccupancyStatus    `json:"occupancy_status" yaml:"-"`
	HousekeepingStatus HousekeepingStatus `json:"housekeeping_status" yaml:"-"`
	Version            int64              `json:"version" yaml:"-"`
	CreatedAt          time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt          time.Time          `json:"updated_at" yaml:"-"`
}

// OutOfService reports whether a manual override keeps the room off sale.
func (r Room) OutOfService() bool {
	return r.OccupancyStatus == OccupancyOutOfService || r.HousekeepingStatus == HousekeepingOutOfOrder
}

// RoomPatch carries the fields a status write may change. Nil fields are left as is.
type RoomPatch struct {
	OccupancyStatus    *OccupancyStatus
	HousekeepingStatus *HousekeepingStatus
}

func (p RoomPatch) Empty() bool {
	return p.OccupancyStatus == nil && p.HousekeepingStatus == nil
}

type RoomFilter struct {
	TenantID string
	RoomIDs  []int64
}

type BookingFilter struct {
	TenantID string
	RoomID   int64
	Statuses []BookingStatus
}
