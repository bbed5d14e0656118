package locking

import "hotelsync/internal/domain"

var (
	_ domain.RoomLocker = (*RedisLocker)(nil)
	_ domain.RoomLocker = (*MemoryLocker)(nil)
	_ domain.RoomLocker = (*FailoverLocker)(nil)
)
