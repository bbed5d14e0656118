package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"hotelsync/internal/alerting"
	"hotelsync/internal/config"
	"hotelsync/internal/consistency"
	"hotelsync/internal/database"
	"hotelsync/internal/domain"
	"hotelsync/internal/events"
	"hotelsync/internal/google"
	"hotelsync/internal/locking"
	"hotelsync/internal/logging"
	"hotelsync/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const usage = `usage: hotelsync <command> [flags]

commands:
  validate   report rooms whose status disagrees with their bookings
  reconcile  repair drifted room statuses once
  serve      run the reconcile worker, alerts and metrics
  history    show recent reconcile runs
  room       set or clear the out-of-service override
  booking    create bookings and change their status
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatalf("Fatal error: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	commands := map[string]func(ctx context.Context, a *app, args []string) error{
		"validate":  runValidate,
		"reconcile": runReconcile,
		"serve":     runServe,
		"history":   runHistory,
		"room":      runRoom,
		"booking":   runBooking,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, args[0])
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd(ctx, a, args[1:])
}

// app holds the components every command shares.
type app struct {
	cfg        *config.Config
	logger     *zerolog.Logger
	closer     io.Closer
	db         *database.DB
	redis      *redis.Client
	locker     domain.RoomLocker
	bus        *events.EventBus
	reconciler *consistency.Reconciler
}

func bootstrap(ctx context.Context, command string) (*app, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, err
	}
	logger := logging.Component(baseLogger, command)

	a := &app{cfg: cfg, logger: logger, closer: closer, bus: events.NewEventBus()}

	a.db, err = database.NewDB(cfg.Database.Path, logging.Component(baseLogger, "database"))
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		a.Close()
		return nil, err
	}
	if err := a.db.SyncRooms(ctx, cfg.Inventory.Rooms); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации номеров")
	}

	a.locker = a.initLocker(ctx, baseLogger)
	a.initAlerts(baseLogger)

	a.reconciler = consistency.NewReconciler(a.db, a.db, a.locker, a.bus, logging.Component(baseLogger, "reconciler"))
	return a, nil
}

func (a *app) initLocker(ctx context.Context, base *zerolog.Logger) domain.RoomLocker {
	memory := locking.NewMemoryLocker()
	if !a.cfg.Redis.Enabled() {
		return memory
	}

	a.redis = locking.NewRedisClient(a.cfg.Redis)
	if err := locking.Ping(ctx, a.redis); err != nil {
		a.logger.Warn().Err(err).Msg("Redis unavailable, room locks fall back to this process")
	}
	lockLogger := logging.Component(base, "locker")
	primary := locking.NewRedisLocker(a.redis, a.cfg.Reconcile.LockTTL, a.cfg.Reconcile.LockWait, lockLogger)
	return locking.NewFailoverLocker(primary, memory, lockLogger)
}

func (a *app) initAlerts(base *zerolog.Logger) {
	var sinks []alerting.Sink

	if tg := a.cfg.Alerts.Telegram; tg.Enabled() {
		botAPI, err := tgbotapi.NewBotAPI(tg.BotToken)
		if err != nil {
			a.logger.Error().Err(err).Msg("Ошибка создания BotAPI, telegram alerts disabled")
		} else {
			sinks = append(sinks, alerting.NewTelegramSink(botAPI, tg.ChatIDs))
		}
	}

	if mq := a.cfg.Alerts.MQTT; mq.Enabled() {
		client, err := alerting.ConnectMQTT(mq)
		if err != nil {
			a.logger.Error().Err(err).Msg("mqtt alerts disabled")
		} else {
			sinks = append(sinks, alerting.NewMQTTSink(client, mq.Topic, mq.QoS))
		}
	}

	if len(sinks) == 0 {
		a.logger.Info().Msg("no alert sinks configured, double bookings are only logged")
		return
	}
	alerting.NewDispatcher(logging.Component(base, "alerts"), sinks...).Subscribe(a.bus)
}

func (a *app) newWorker(ctx context.Context) *worker.ReconcileWorker {
	w := worker.NewReconcileWorker(a.reconciler, a.db, a.db, a.redis, a.cfg.Reconcile, a.logger)

	if g := a.cfg.Google; g.Enabled() {
		sheet, err := google.NewReportSheet(ctx, g.GoogleCredentialsFile, g.ReportSpreadSheetID)
		if err == nil {
			err = sheet.TestConnection(ctx)
		}
		if err != nil {
			a.logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		} else {
			w.AddRecorder(sheet)
			a.logger.Info().Msg("google sheets connected")
		}
	}
	return w
}

// tenants resolves the -tenant flag, the configured list or every known tenant.
func (a *app) tenants(ctx context.Context, flagValue string) ([]string, error) {
	if flagValue != "" {
		return []string{flagValue}, nil
	}
	if list := a.cfg.Tenants(); len(list) > 0 {
		return list, nil
	}
	return a.db.ListTenants(ctx)
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = locking.Close(a.redis)
	}
	if a.closer != nil {
		_ = a.closer.Close()
	}
}
