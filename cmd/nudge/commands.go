package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/dukerupert/nudge/internal/config"
	"github.com/dukerupert/nudge/internal/middleware"
	"github.com/dukerupert/nudge/internal/model"
	"github.com/dukerupert/nudge/internal/push"
	"github.com/dukerupert/nudge/internal/recurrence"
	"github.com/dukerupert/nudge/internal/secrets"
)

type ServeCmd struct {
	Addr string `help:"Listen address, overrides http.addr."`
}

func (cmd *ServeCmd) Run(app *App) error {
	srv, db, err := app.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	addr := app.Config.HTTP.Addr
	if cmd.Addr != "" {
		addr = cmd.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)
	defer srv.Stop()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	if rl := srv.RateLimiter(); rl != nil {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					rl.Cleanup()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("nudge starting", "addr", addr, "platform", app.Config.Platform, "push", srv.PushService() != nil)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

// HabitArgs are shared by the commands that submit reminders.
type HabitArgs struct {
	HabitID int64  `arg:"" name:"habit-id" help:"Habit id."`
	Name    string `arg:"" help:"Habit name shown in the reminder."`
	Days    string `help:"Days: MO,WE,FR or daily, weekdays, weekends." default:"daily"`
	Time    string `help:"Time of day, HH:MM (24h)." required:""`
}

func (a HabitArgs) reminder() (model.HabitReminder, error) {
	days, err := recurrence.ParseDays(a.Days)
	if err != nil {
		return model.HabitReminder{}, err
	}
	if _, _, err := recurrence.ParseClock(a.Time); err != nil {
		return model.HabitReminder{}, err
	}
	return model.HabitReminder{HabitID: a.HabitID, Name: a.Name, DaysOfWeek: days, Time: a.Time}, nil
}

func printIDs(verb string, habitID int64, ids []string) {
	if len(ids) == 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("No reminders %s for habit %d", verb, habitID)))
		return
	}
	fmt.Println(successStyle.Render(idsHeading(verb, habitID, len(ids))))
	for _, id := range ids {
		fmt.Println(mutedStyle.Render("  " + id))
	}
}

func idsHeading(verb string, habitID int64, n int) string {
	return fmt.Sprintf("%s %s for habit %d", strings.ToUpper(verb[:1])+verb[1:], english.Plural(n, "reminder", "reminders"), habitID)
}

type ScheduleCmd struct {
	HabitArgs `embed:""`
}

func (cmd *ScheduleCmd) Run(app *App) error {
	h, err := cmd.reminder()
	if err != nil {
		return err
	}
	srv, db, err := app.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := withTimeout()
	defer cancel()
	ids, err := srv.Reminders().Schedule(ctx, h)
	if err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	printIDs("scheduled", h.HabitID, ids)
	return nil
}

type UpdateCmd struct {
	HabitArgs `embed:""`
}

func (cmd *UpdateCmd) Run(app *App) error {
	h, err := cmd.reminder()
	if err != nil {
		return err
	}
	srv, db, err := app.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := withTimeout()
	defer cancel()
	ids, err := srv.Reminders().Update(ctx, h)
	if err != nil {
		return fmt.Errorf("update reminders: %w", err)
	}
	printIDs("scheduled", h.HabitID, ids)
	return nil
}

type CompleteCmd struct {
	HabitArgs `embed:""`
}

func (cmd *CompleteCmd) Run(app *App) error {
	h, err := cmd.reminder()
	if err != nil {
		return err
	}
	srv, db, err := app.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := srv.Reminders()
	if !svc.Strategy().NeedsPostCompletionReschedule() {
		fmt.Printf("Habit %d reminders repeat weekly; nothing to re-arm\n", h.HabitID)
		return nil
	}

	ctx, cancel := withTimeout()
	defer cancel()
	ids, err := svc.Reschedule(ctx, h)
	if err != nil {
		return fmt.Errorf("reschedule reminders: %w", err)
	}
	printIDs("rescheduled", h.HabitID, ids)
	return nil
}

type CancelCmd struct {
	HabitID int64 `arg:"" name:"habit-id" help:"Habit id."`
}

func (cmd *CancelCmd) Run(app *App) error {
	srv, db, err := app.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := withTimeout()
	defer cancel()
	if err := srv.Reminders().Cancel(ctx, cmd.HabitID); err != nil {
		return fmt.Errorf("cancel reminders: %w", err)
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Cancelled reminders for habit %d", cmd.HabitID)))
	return nil
}

type CleanupCmd struct{}

func (cmd *CleanupCmd) Run(app *App) error {
	srv, db, err := app.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := withTimeout()
	defer cancel()
	report, err := srv.Reminders().CleanupOrphans(ctx)
	fmt.Printf("Scanned %d, tracked %d, orphans %d, cancelled %d\n",
		report.Scanned, report.Tracked, report.Orphans, report.Cancelled)
	if err != nil {
		return fmt.Errorf("cleanup incomplete: %w", err)
	}
	return nil
}

type ListCmd struct{}

func (cmd *ListCmd) Run(app *App) error {
	srv, db, err := app.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := withTimeout()
	defer cancel()
	records, err := srv.Reminders().Scheduled(ctx)
	if err != nil {
		return fmt.Errorf("list reminders: %w", err)
	}
	if len(records) == 0 {
		fmt.Println(mutedStyle.Render("No reminders scheduled"))
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHABIT\tTRIGGER\tNEXT\t")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n",
			rec.ID, rec.Content.Data.HabitID, describeTrigger(rec.Trigger),
			humanize.RelTime(rec.NextFireAt, now, "ago", "from now"))
	}
	return tw.Flush()
}

func describeTrigger(t model.Trigger) string {
	switch t.Kind {
	case model.TriggerCalendar:
		var mask [7]bool
		if t.Weekday >= 1 && t.Weekday <= 7 {
			mask[t.Weekday-1] = true
		}
		return fmt.Sprintf("weekly %s %02d:%02d", recurrence.FormatDays(mask), t.Hour, t.Minute)
	case model.TriggerInterval:
		return "once after " + humanize.Comma(t.DelaySeconds) + "s"
	default:
		return string(t.Kind)
	}
}

type DispatchCmd struct{}

func (cmd *DispatchCmd) Run(app *App) error {
	srv, db, err := app.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := withTimeout()
	defer cancel()
	n, err := srv.Dispatcher().Tick(ctx)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	fmt.Printf("Fired %s\n", english.Plural(n, "reminder", "reminders"))
	return nil
}

type DeliveriesCmd struct {
	Limit int `help:"Maximum rows to show." default:"20"`
}

func (cmd *DeliveriesCmd) Run(app *App) error {
	srv, db, err := app.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	deliveries, err := srv.PushStore().ListDeliveries(cmd.Limit)
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		fmt.Println(mutedStyle.Render("No deliveries yet"))
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIRED\tHABIT\tDELIVERED\tFAILED\tNOTIFICATION\t")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t\n", humanize.Time(d.FiredAt), d.HabitID, d.Delivered, d.Failed, d.NotificationID)
	}
	return tw.Flush()
}

type PermissionCmd struct {
	Set string `help:"Record a decision without prompting: granted, denied or undetermined."`
}

func (cmd *PermissionCmd) Run(app *App) error {
	srv, db, err := app.open(true)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Set != "" {
		switch model.PermissionStatus(cmd.Set) {
		case model.PermissionGranted, model.PermissionDenied, model.PermissionUndetermined:
		default:
			return fmt.Errorf("unknown permission %q", cmd.Set)
		}
		live := srv.LiveBackend()
		if live == nil {
			return errors.New("platform is none; there is no permission to set")
		}
		if err := live.SetPermission(model.PermissionStatus(cmd.Set)); err != nil {
			return err
		}
	}

	ctx, cancel := withTimeout()
	defer cancel()
	granted := srv.Reminders().RequestPermission(ctx)
	status, err := srv.Reminders().PermissionStatus(ctx)
	if err != nil {
		return fmt.Errorf("read permission: %w", err)
	}
	style := successStyle
	if !granted {
		style = warnStyle
	}
	fmt.Printf("Notifications: %s (reminders enabled: %t)\n", style.Render(string(status)), granted)
	return nil
}

type VapidKeysCmd struct {
	Save bool `help:"Write the keys to the config file (private key to the OS keyring when push.use_keyring is set)."`
}

func (cmd *VapidKeysCmd) Run(app *App) error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	if !cmd.Save {
		fmt.Printf("vapid_public_key: %s\nvapid_private_key: %s\n", pub, priv)
		return nil
	}

	cfg := *app.Config
	cfg.Push.VAPIDPublicKey = pub
	if cfg.Push.UseKeyring {
		if err := secrets.SetVAPIDPrivateKey(priv); err != nil {
			return err
		}
		cfg.Push.VAPIDPrivateKey = ""
	} else {
		cfg.Push.VAPIDPrivateKey = priv
	}
	if err := config.Save(app.ConfigPath, &cfg); err != nil {
		return err
	}
	fmt.Printf("Saved VAPID keys to %s\n", app.ConfigPath)
	fmt.Printf("Public key: %s\n", pub)
	return nil
}

type HashTokenCmd struct {
	Token string `arg:"" help:"API token clients will send as a bearer token."`
}

func (cmd *HashTokenCmd) Run(app *App) error {
	hash, err := middleware.HashToken(cmd.Token)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
