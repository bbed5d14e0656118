package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"hotelsync/internal/config"
	"hotelsync/internal/domain"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var ErrQueueFull = errors.New("reconcile queue is full")

// Reconciler is the part of consistency.Reconciler the worker drives.
type Reconciler interface {
	ReconcileTenant(ctx context.Context, tenantID string) (*models.ReconcileResult, error)
	ReconcileRoom(ctx context.Context, tenantID string, roomID int64) (*models.ReconcileResult, error)
}

type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// RunRecorder receives every finished run, after it is stored in the audit log.
type RunRecorder interface {
	RecordRun(ctx context.Context, result *models.ReconcileResult) error
}

// Job asks for one reconcile pass. RoomID 0 means the whole tenant.
type Job struct {
	TenantID string    `json:"tenant_id"`
	RoomID   int64     `json:"room_id,omitempty"`
	Attempt  int       `json:"attempt,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

func (j Job) String() string {
	if j.RoomID == 0 {
		return j.TenantID
	}
	return fmt.Sprintf("%s/%d", j.TenantID, j.RoomID)
}

// ReconcileWorker runs reconcile passes triggered by booking mutations and a
// periodic pass over every tenant.
type ReconcileWorker struct {
	reconciler    Reconciler
	tenants       TenantLister
	fixedTenants  []string
	audit         domain.AuditLog
	recorders     []RunRecorder
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan Job
	redisQueueKey string
	deadLetterKey string
	interval      time.Duration

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	rps        rate.Limit
	burst      int

	retries sync.WaitGroup
	logger  *zerolog.Logger
}

func NewReconcileWorker(
	reconciler Reconciler,
	tenants TenantLister,
	audit domain.AuditLog,
	redisClient *redis.Client,
	cfg config.ReconcileConfig,
	logger *zerolog.Logger,
) *ReconcileWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = models.WorkerQueueSize
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = models.DefaultReconcileInterval * time.Second
	}
	rps := rate.Limit(cfg.RateLimit.RPS)
	if cfg.RateLimit.RPS <= 0 {
		rps = rate.Inf
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	return &ReconcileWorker{
		reconciler:   reconciler,
		tenants:      tenants,
		fixedTenants: cfg.Tenants,
		audit:        audit,
		redis:        redisClient,
		retryPolicy: RetryPolicy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: cfg.InitialRetryDelay,
		}.withDefaults(),
		queue:         make(chan Job, queueSize),
		redisQueueKey: "reconcile:queue",
		deadLetterKey: "reconcile:deadletter",
		interval:      interval,
		limiters:      make(map[string]*rate.Limiter),
		rps:           rps,
		burst:         burst,
		logger:        logger,
	}
}

// AddRecorder registers an extra destination for finished runs.
func (w *ReconcileWorker) AddRecorder(r RunRecorder) {
	w.recorders = append(w.recorders, r)
}

// Trigger schedules reconciliation of one room after its bookings changed.
func (w *ReconcileWorker) Trigger(ctx context.Context, tenantID string, roomID int64) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	return w.enqueue(ctx, Job{TenantID: tenantID, RoomID: roomID, QueuedAt: time.Now()})
}

func (w *ReconcileWorker) enqueue(ctx context.Context, job Job) error {
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, job); err != nil {
			w.logger.Warn().Err(err).Str("job", job.String()).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- job:
		metrics.SetQueueDepth(len(w.queue))
		return nil
	default:
		// периодический проход подберёт комнату позже
		w.logger.Warn().Str("job", job.String()).Msg("reconcile queue full, left to periodic pass")
		return ErrQueueFull
	}
}

// Start runs the worker until ctx is done.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Bool("redis", w.redis != nil).Msg("reconcile worker started")
	defer w.logger.Info().Msg("reconcile worker stopped")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunAll(ctx)

	for {
		if w.redis == nil {
			select {
			case <-ctx.Done():
				w.retries.Wait()
				return
			case <-ticker.C:
				w.RunAll(ctx)
			case job := <-w.queue:
				metrics.SetQueueDepth(len(w.queue))
				w.process(ctx, job)
			}
			continue
		}

		select {
		case <-ctx.Done():
			w.retries.Wait()
			return
		case <-ticker.C:
			w.RunAll(ctx)
			continue
		case job := <-w.queue:
			metrics.SetQueueDepth(len(w.queue))
			w.process(ctx, job)
			continue
		default:
		}

		if job, ok := w.tryRedis(ctx); ok {
			w.process(ctx, job)
		}
	}
}

// RunAll reconciles every tenant once.
func (w *ReconcileWorker) RunAll(ctx context.Context) {
	tenants, err := w.tenantList(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("list tenants")
		return
	}
	for _, tenantID := range tenants {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, Job{TenantID: tenantID, QueuedAt: time.Now()})
	}
}

// RunTenant reconciles one tenant synchronously and records the run.
func (w *ReconcileWorker) RunTenant(ctx context.Context, tenantID string) (*models.ReconcileResult, error) {
	return w.run(ctx, Job{TenantID: tenantID, QueuedAt: time.Now()})
}

// RunRoom reconciles one room synchronously and records the run.
func (w *ReconcileWorker) RunRoom(ctx context.Context, tenantID string, roomID int64) (*models.ReconcileResult, error) {
	return w.run(ctx, Job{TenantID: tenantID, RoomID: roomID, QueuedAt: time.Now()})
}

func (w *ReconcileWorker) tenantList(ctx context.Context) ([]string, error) {
	if len(w.fixedTenants) > 0 {
		return w.fixedTenants, nil
	}
	if w.tenants == nil {
		return nil, nil
	}
	return w.tenants.ListTenants(ctx)
}

func (w *ReconcileWorker) process(ctx context.Context, job Job) {
	result, err := w.run(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error().Err(err).Str("job", job.String()).Int("attempt", job.Attempt).Msg("reconcile failed")
		w.retry(ctx, job, err)
		return
	}

	// Комнаты, запись которых не удалась, повторяем по одной
	for _, roomID := range result.FailedRoomIDs() {
		next := Job{TenantID: job.TenantID, RoomID: roomID, Attempt: job.Attempt, QueuedAt: time.Now()}
		w.retry(ctx, next, fmt.Errorf("room %d not written", roomID))
	}
}

func (w *ReconcileWorker) run(ctx context.Context, job Job) (*models.ReconcileResult, error) {
	if err := w.limiterFor(job.TenantID).Wait(ctx); err != nil {
		return nil, err
	}

	var (
		result *models.ReconcileResult
		err    error
	)
	if job.RoomID == 0 {
		result, err = w.reconciler.ReconcileTenant(ctx, job.TenantID)
	} else {
		result, err = w.reconciler.ReconcileRoom(ctx, job.TenantID, job.RoomID)
	}
	if err != nil {
		return nil, err
	}

	w.record(ctx, result)
	return result, nil
}

func (w *ReconcileWorker) record(ctx context.Context, result *models.ReconcileResult) {
	if w.audit != nil {
		if err := w.audit.SaveReconcileRun(ctx, result); err != nil {
			w.logger.Error().Err(err).Str("run_id", result.RunID).Msg("save reconcile run")
		}
	}
	for _, r := range w.recorders {
		if err := r.RecordRun(ctx, result); err != nil {
			w.logger.Warn().Err(err).Str("run_id", result.RunID).Msg("record reconcile run")
		}
	}
}

func (w *ReconcileWorker) retry(ctx context.Context, job Job, cause error) {
	job.Attempt++
	if w.retryPolicy.Exhausted(job.Attempt) {
		w.logger.Error().Err(cause).Str("job", job.String()).Int("attempts", job.Attempt-1).Msg("reconcile retries exhausted")
		w.pushDeadLetter(ctx, job)
		return
	}

	delay := w.retryPolicy.NextDelay(job.Attempt)
	w.logger.Debug().Str("job", job.String()).Int("attempt", job.Attempt).Dur("delay", delay).Msg("reconcile retry scheduled")

	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			job.QueuedAt = time.Now()
			_ = w.enqueue(ctx, job)
		}
	}()
}

func (w *ReconcileWorker) limiterFor(tenantID string) *rate.Limiter {
	w.limitersMu.Lock()
	defer w.limitersMu.Unlock()
	l, ok := w.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(w.rps, w.burst)
		w.limiters[tenantID] = l
	}
	return l
}

func (w *ReconcileWorker) tryRedis(ctx context.Context) (Job, bool) {
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return Job{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		// не крутимся в пустую, пока redis недоступен
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return Job{}, false
	}
	if len(res) != 2 {
		return Job{}, false
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		w.logger.Error().Err(err).Msg("decode redis job")
		return Job{}, false
	}
	return job, true
}

func (w *ReconcileWorker) pushRedis(ctx context.Context, key string, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *ReconcileWorker) pushDeadLetter(ctx context.Context, job Job) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, job); err != nil {
		w.logger.Error().Err(err).Str("job", job.String()).Msg("deadletter push")
	}
}
