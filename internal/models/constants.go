package models

const (
	// DefaultReconcileInterval период полного прохода сверки, в секундах
	DefaultReconcileInterval = 15 * 60

	// DefaultLockTTL время жизни блокировки комнаты, в секундах
	DefaultLockTTL = 30

	// DefaultLockWait сколько ждать блокировку комнаты, в секундах
	DefaultLockWait = 10

	// WorkerQueueSize размер очереди воркера сверки
	WorkerQueueSize = 1000

	// DefaultMaxRetries попыток записи комнаты до отказа
	DefaultMaxRetries = 5

	// DefaultStoreRPS ограничение частоты записей в хранилище на тенанта
	DefaultStoreRPS   = 20
	DefaultStoreBurst = 5

	ParseModeMarkdown = "Markdown"
)
