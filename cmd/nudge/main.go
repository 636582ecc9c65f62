package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/dukerupert/nudge/internal/config"
	"github.com/dukerupert/nudge/internal/logging"
)

var version = "dev"

type CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path (default: XDG config dir)." type:"path"`
	DB      string `help:"Database path, overrides db_path." type:"path"`
	Verbose bool   `short:"v" help:"Log at debug level."`

	Serve      ServeCmd      `cmd:"" help:"Run the HTTP API and reminder dispatcher." default:"1"`
	Schedule   ScheduleCmd   `cmd:"" help:"Schedule reminders for a habit."`
	Update     UpdateCmd     `cmd:"" help:"Replace a habit's reminders."`
	Complete   CompleteCmd   `cmd:"" help:"Record a habit completion and re-arm one-shot reminders."`
	Cancel     CancelCmd     `cmd:"" help:"Cancel a habit's reminders."`
	Cleanup    CleanupCmd    `cmd:"" help:"Cancel scheduled reminders no habit owns."`
	List       ListCmd       `cmd:"" help:"List scheduled reminders."`
	Dispatch   DispatchCmd   `cmd:"" help:"Fire due reminders once and exit."`
	Deliveries DeliveriesCmd `cmd:"" help:"Show recent reminder deliveries."`
	Permission PermissionCmd `cmd:"" help:"Request or set notification permission."`
	VapidKeys  VapidKeysCmd  `cmd:"" name:"vapid-keys" help:"Generate a VAPID key pair for web push."`
	HashToken  HashTokenCmd  `cmd:"" name:"hash-token" help:"Print the bcrypt hash of an API token for api.token_hash."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("nudge"),
		kong.Description("Weekly habit reminder scheduler"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": version},
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cli.DB != "" {
		cfg.DBPath = cli.DB
	}
	if cli.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, closer := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	configPath := cli.Config
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	app := &App{Config: cfg, ConfigPath: configPath, Logger: logger}

	err = kctx.Run(app)
	closer.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
