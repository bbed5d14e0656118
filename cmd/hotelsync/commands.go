package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"hotelsync/internal/consistency"
	"hotelsync/internal/database"
	"hotelsync/internal/domain"
	"hotelsync/internal/export"
	"hotelsync/internal/logging"
	"hotelsync/internal/metrics"
	"hotelsync/internal/models"
	"hotelsync/internal/service"
	"hotelsync/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var errCritical = errors.New("critical findings")

func runValidate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant to validate (default: all)")
	exportPath := fs.String("export", "", "write the report to this xlsx file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	tenants, err := a.tenants(ctx, *tenant)
	if err != nil {
		return err
	}

	critical := 0
	for _, tenantID := range tenants {
		rooms, err := a.db.GetRooms(ctx, models.RoomFilter{TenantID: tenantID})
		if err != nil {
			return fmt.Errorf("load rooms of %s: %w", tenantID, err)
		}
		bookings, err := a.db.GetBookings(ctx, models.BookingFilter{TenantID: tenantID})
		if err != nil {
			return fmt.Errorf("load bookings of %s: %w", tenantID, err)
		}

		report, err := consistency.ValidateTenant(tenantID, rooms, bookings, consistency.ValidateOptions{})
		if err != nil {
			return err
		}
		printReport(report)
		critical += len(report.Critical())

		if *exportPath != "" {
			path := exportFile(*exportPath, tenantID, len(tenants) > 1)
			if err := export.WriteReport(path, report, nil); err != nil {
				return err
			}
			a.logger.Info().Str("tenant", tenantID).Str("path", path).Msg("report exported")
		}
	}

	if critical > 0 {
		return fmt.Errorf("%w: %d", errCritical, critical)
	}
	return nil
}

func runReconcile(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant to reconcile (default: all)")
	exportDir := fs.String("export", "", "write an xlsx report per tenant into this directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	tenants, err := a.tenants(ctx, *tenant)
	if err != nil {
		return err
	}

	w := a.newWorker(ctx)
	failed := 0
	for _, tenantID := range tenants {
		result, err := w.RunTenant(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", tenantID, err)
		}
		fmt.Printf("%s: run %s fixed %d, failed %d, double bookings %d\n",
			tenantID, result.RunID, result.Fixed, result.Failed, len(result.DoubleBookings))
		for _, d := range result.Details {
			printDetail(d)
		}
		failed += result.Failed

		if *exportDir != "" {
			report := models.Report{
				TenantID:    tenantID,
				GeneratedAt: result.StartedAt,
				Mismatches:  append(append([]models.Mismatch{}, result.DoubleBookings...), result.Findings...),
			}
			path := filepath.Join(*exportDir, export.FileName(tenantID, result.StartedAt))
			if err := export.WriteReport(path, report, result); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d room(s) could not be written", failed)
	}
	return nil
}

func runServe(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if a.cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, a.cfg.Monitoring.PrometheusPort, a.logger)
	}

	if a.cfg.Database.Backup.Enabled {
		backupService := database.NewBackupService(a.db, a.cfg.Database.Backup, logging.Component(a.logger, "backup"))
		go backupService.Start(ctx)
	}

	w := a.newWorker(ctx)
	a.logger.Info().Msg("hotelsync started")
	w.Start(ctx)

	a.logger.Info().Msg("Shutdown complete.")
	return nil
}

func runHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant (required)")
	limit := fs.Int("limit", 10, "number of runs")
	if err := fs.Parse(args); err != nil || *tenant == "" {
		return errUsage
	}

	runs, err := a.db.RecentReconcileRuns(ctx, *tenant, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tFIXED\tFAILED\tDOUBLE BOOKINGS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.RunID, r.StartedAt.Format(time.RFC3339), r.Fixed, r.Failed, r.DoubleBookings)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, r := range runs {
		for _, d := range r.Details {
			fmt.Printf("%s ", r.RunID)
			printDetail(d)
		}
	}
	return nil
}

func runRoom(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("room", flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant (required)")
	number := fs.String("number", "", "room number (required)")
	oos := fs.Bool("out-of-service", true, "take the room off sale; false hands it back")
	if err := fs.Parse(args); err != nil || *tenant == "" || *number == "" {
		return errUsage
	}

	room, err := a.db.GetRoomByNumber(ctx, *tenant, *number)
	if err != nil {
		return err
	}

	w := a.newWorker(ctx)
	rooms := service.NewRoomService(a.db, a.locker, immediateTrigger{w}, logging.Component(a.logger, "rooms"))
	updated, err := rooms.SetOutOfService(ctx, *tenant, room.ID, *oos)
	if err != nil {
		return err
	}
	fmt.Printf("room %s: %s/%s\n", updated.Number, updated.OccupancyStatus, updated.HousekeepingStatus)
	return nil
}

func runBooking(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	w := a.newWorker(ctx)
	var trigger domain.ReconcileTrigger = immediateTrigger{w}
	if a.redis != nil {
		// очередь в redis разбирает запущенный serve
		trigger = w
	}
	bookings := service.NewBookingService(a.db, a.bus, trigger, logging.Component(a.logger, "bookings"))

	fs := flag.NewFlagSet("booking "+args[0], flag.ContinueOnError)
	tenant := fs.String("tenant", "", "tenant (required)")

	switch args[0] {
	case "create":
		number := fs.String("room", "", "room number")
		guest := fs.String("guest", "", "guest name")
		adults := fs.Int("adults", 1, "adults")
		children := fs.Int("children", 0, "children")
		in := fs.String("in", "", "check-in date YYYY-MM-DD")
		out := fs.String("out", "", "check-out date YYYY-MM-DD")
		status := fs.String("status", "", "initial status (default CONFIRMED)")
		if err := fs.Parse(args[1:]); err != nil || *tenant == "" {
			return errUsage
		}

		room, err := a.db.GetRoomByNumber(ctx, *tenant, *number)
		if err != nil {
			return err
		}
		checkIn, err := models.ParseDate(*in)
		if err != nil {
			return fmt.Errorf("check-in date: %w", err)
		}
		checkOut, err := models.ParseDate(*out)
		if err != nil {
			return fmt.Errorf("check-out date: %w", err)
		}

		b := &models.Booking{
			TenantID:     *tenant,
			RoomID:       room.ID,
			RoomTypeID:   room.RoomTypeID,
			GuestName:    *guest,
			Adults:       *adults,
			Children:     *children,
			CheckInDate:  checkIn,
			CheckOutDate: checkOut,
			Status:       models.BookingStatus(*status),
		}
		if err := bookings.CreateBooking(ctx, b); err != nil {
			return err
		}
		fmt.Printf("%s created (id %d, %s)\n", b.ReservationNumber, b.ID, b.Status)
		return nil

	case "status":
		id := fs.Int64("id", 0, "booking id")
		version := fs.Int64("version", 0, "expected version (0 skips the check)")
		status := fs.String("status", "", "new status")
		if err := fs.Parse(args[1:]); err != nil || *tenant == "" || *id == 0 || *status == "" {
			return errUsage
		}
		b, err := bookings.ChangeStatus(ctx, *tenant, *id, *version, *status)
		if err != nil {
			return err
		}
		fmt.Printf("%s is %s (version %d)\n", b.ReservationNumber, b.Status, b.Version)
		return nil

	case "reschedule":
		id := fs.Int64("id", 0, "booking id")
		version := fs.Int64("version", 0, "expected version (0 skips the check)")
		number := fs.String("room", "", "new room number (default: keep)")
		in := fs.String("in", "", "check-in date YYYY-MM-DD")
		out := fs.String("out", "", "check-out date YYYY-MM-DD")
		if err := fs.Parse(args[1:]); err != nil || *tenant == "" || *id == 0 {
			return errUsage
		}
		req := service.RescheduleRequest{TenantID: *tenant, BookingID: *id, Version: *version}
		if *number != "" {
			room, err := a.db.GetRoomByNumber(ctx, *tenant, *number)
			if err != nil {
				return err
			}
			req.RoomID = room.ID
		}
		var err error
		if req.CheckInDate, err = models.ParseDate(*in); err != nil {
			return fmt.Errorf("check-in date: %w", err)
		}
		if req.CheckOutDate, err = models.ParseDate(*out); err != nil {
			return fmt.Errorf("check-out date: %w", err)
		}
		b, err := bookings.Reschedule(ctx, req)
		if err != nil {
			return err
		}
		fmt.Printf("%s moved to %s..%s\n", b.ReservationNumber,
			b.CheckInDate.Format(models.DateLayout), b.CheckOutDate.Format(models.DateLayout))
		return nil

	case "note":
		id := fs.Int64("id", 0, "booking id")
		text := fs.String("text", "", "note text")
		if err := fs.Parse(args[1:]); err != nil || *tenant == "" || *id == 0 {
			return errUsage
		}
		b, err := bookings.AddNote(ctx, *tenant, *id, *text)
		if err != nil {
			return err
		}
		fmt.Printf("%s notes:\n%s\n", b.ReservationNumber, b.Notes)
		return nil

	case "list":
		number := fs.String("room", "", "room number")
		if err := fs.Parse(args[1:]); err != nil || *tenant == "" || *number == "" {
			return errUsage
		}
		room, err := a.db.GetRoomByNumber(ctx, *tenant, *number)
		if err != nil {
			return err
		}
		list, err := bookings.ListRoomBookings(ctx, *tenant, room.ID)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRESERVATION\tGUEST\tIN\tOUT\tSTATUS\tVERSION")
		for _, b := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n", b.ID, b.ReservationNumber, b.GuestName,
				b.CheckInDate.Format(models.DateLayout), b.CheckOutDate.Format(models.DateLayout), b.Status, b.Version)
		}
		return tw.Flush()
	}
	return errUsage
}

// immediateTrigger reconciles the room in the calling process. One-shot
// commands use it when there is no shared queue for serve to drain.
type immediateTrigger struct {
	w *worker.ReconcileWorker
}

func (t immediateTrigger) Trigger(ctx context.Context, tenantID string, roomID int64) error {
	_, err := t.w.RunRoom(ctx, tenantID, roomID)
	return err
}

func printReport(report models.Report) {
	if len(report.Mismatches) == 0 {
		fmt.Printf("%s: consistent\n", report.TenantID)
		return
	}
	fmt.Printf("%s: %d finding(s)\n", report.TenantID, len(report.Mismatches))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tKIND\tROOM\tSTORED\tIMPLIED\tREASON")
	for _, m := range report.Mismatches {
		reason := m.Reason
		if len(m.Messages) > 0 {
			reason += ": " + strings.Join(m.Messages, "; ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s/%s\t%s/%s\t%s\n", m.Severity, m.Kind, m.RoomNumber,
			m.ActualStatus, m.ActualHousekeeping, m.ExpectedStatus, m.ExpectedHousekeeping, reason)
	}
	_ = tw.Flush()
}

func printDetail(d models.FixDetail) {
	state := "applied"
	if !d.Applied {
		state = "failed: " + d.Error
	}
	fmt.Printf("  room %s %s → %s (%s → %s) %s, %s\n",
		d.RoomNumber, d.From, d.To, d.HousekeepingFrom, d.HousekeepingTo, d.Reason, state)
}

// exportFile puts the tenant into the file name when several tenants share one -export path.
func exportFile(path, tenantID string, many bool) string {
	if !many {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + tenantID + ext
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
