package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/dukerupert/nudge/internal/config"
	"github.com/dukerupert/nudge/internal/database"
	"github.com/dukerupert/nudge/internal/middleware"
	"github.com/dukerupert/nudge/internal/notify"
	"github.com/dukerupert/nudge/internal/push"
	"github.com/dukerupert/nudge/internal/reminder"
	"github.com/dukerupert/nudge/internal/secrets"
	"github.com/dukerupert/nudge/internal/server"
)

// App is passed to every command's Run method.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
}

// open builds the server against the configured database. interactive
// allows the permission prompt to ask on the terminal.
func (a *App) open(interactive bool) (*server.Server, *sql.DB, error) {
	cfg := a.Config

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	privateKey, err := secrets.ResolveVAPIDPrivateKey(cfg.Push.VAPIDPrivateKey, cfg.Push.UseKeyring)
	if err != nil {
		a.Logger.Warn("vapid key unavailable, web push disabled", "error", err)
	}

	desktop := notify.Noop()
	if cfg.Desktop.Enabled {
		desktop = notify.New("nudge")
	}

	trusted, err := middleware.ParseTrustedProxies(cfg.HTTP.TrustedProxies)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	srv := server.New(db, server.Options{
		Platform: cfg.Platform,
		Device:   reminder.StaticDevice(cfg.Device.Physical),
		Prompter: a.prompter(interactive),
		Title:    cfg.Title,
		Push: push.Config{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: privateKey,
			Subscriber:      cfg.Push.Subscriber,
		},
		Dispatcher: push.DispatcherConfig{
			Interval:  cfg.Dispatcher.Interval,
			Retention: cfg.Dispatcher.Retention,
			Desktop:   desktop,
		},
		OriginPatterns: cfg.HTTP.OriginPatterns,
		RateLimit:      cfg.HTTP.RateLimit,
		TrustedProxies: trusted,
		TokenHash:      cfg.API.TokenHash,
	}, a.Logger)
	return srv, db, nil
}

func (a *App) prompter(interactive bool) reminder.Prompter {
	switch a.Config.Permission {
	case config.PermissionGrant:
		return reminder.AutoPrompter(true)
	case config.PermissionDeny:
		return reminder.AutoPrompter(false)
	}
	if !interactive {
		return nil
	}
	return reminder.PrompterFunc(confirmPermission)
}

func confirmPermission(ctx context.Context) (bool, error) {
	allow := true
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Allow nudge to show habit reminders?").
				Description("You can change this later with `nudge permission --set`.").
				Affirmative("Allow").
				Negative("Don't allow").
				Value(&allow),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("permission prompt: %w", err)
	}
	return allow, nil
}

// withTimeout bounds one-shot CLI commands.
func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 2*time.Minute)
}
