package main

import (
	"context"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/cli/backups"
	"github.com/julianstephens/keel/internal/cli/counters"
	"github.com/julianstephens/keel/internal/cli/entries"
	"github.com/julianstephens/keel/internal/cli/fasts"
	"github.com/julianstephens/keel/internal/cli/practice"
	"github.com/julianstephens/keel/internal/cli/settings"
	"github.com/julianstephens/keel/internal/cli/syncs"
	"github.com/julianstephens/keel/internal/cli/system"
	"github.com/julianstephens/keel/internal/config"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/errors"
	"github.com/julianstephens/keel/internal/logger"
)

type CLI struct {
	Version kong.VersionFlag
	DataDir string `help:"Data directory holding the database, config and logs (default: ~/.config/keel)." type:"path" env:"KEEL_DATA_DIR"`
	Debug   bool   `help:"Log debug output to stderr."`

	Init     system.InitCmd       `cmd:"" help:"Initialize keel storage."`
	Migrate  system.MigrateCmd    `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd     `cmd:"" help:"Run health checks and diagnostics."`
	Counter  counters.CounterCmd  `cmd:"" help:"Manage streak counters."`
	Fast     fasts.FastCmd        `cmd:"" help:"Track fasting sessions."`
	Entry    entries.EntryCmd     `cmd:"" help:"Record check-ins and other dated entries."`
	Practice practice.PracticeCmd `cmd:"" help:"Manage the weekly practice."`
	Settings settings.SettingsCmd `cmd:"" help:"Manage application settings."`
	Sync     syncs.SyncCmd        `cmd:"" help:"Replicate the database to a cloud folder."`
	Backup   backups.BackupCmd    `cmd:"" help:"Manage database backups."`
	Clear    system.ClearCmd      `cmd:"" help:"Delete all data on this device."`
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name(constants.AppName),
		kong.Description("Local-first tracker for streaks, fasts, check-ins and weekly practice"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	}, options...)
	return kong.New(cli, options...)
}

func main() {
	var args CLI
	parser, err := newParser(&args)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cfg, err := config.Load(config.Overrides{DataDir: args.DataDir, Debug: args.Debug})
	if err != nil {
		errors.Fatal(err)
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, DataDir: cfg.DataDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	appCtx := cli.NewContext(context.Background(), cfg)
	err = kctx.Run(appCtx)
	// A pending upload is flushed here, unless a watcher picks it up.
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Shutdown failed", "error", cerr)
	}
	if err != nil {
		errors.Fatal(err)
	}
}
