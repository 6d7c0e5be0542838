package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/keel/internal/app"
	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/temporal"
)

type DoctorCmd struct{}

type check struct {
	name string
	// needsDB checks are skipped while the fallback store is in use.
	needsDB bool
	run     func(ctx *cli.Context, a *app.App) error
}

// errWarn marks a finding that is reported but does not fail the run.
type errWarn struct{ msg string }

func (e errWarn) Error() string { return e.msg }

func warnf(format string, args ...any) error {
	return errWarn{msg: fmt.Sprintf(format, args...)}
}

var checks = []check{
	{name: "Relational engine", run: checkEngine},
	{name: "Database reachable", needsDB: true, run: checkDBReachable},
	{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
	{name: "Backups present", needsDB: true, run: checkBackupsPresent},
	{name: "Data validation", run: checkValidation},
	{name: "Fallback store", needsDB: true, run: checkFallbackDrained},
	{name: "Sync", run: checkSync},
	{name: "Clock/timezone", run: checkClockTimezone},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	a, err := ctx.App()
	if err != nil {
		ctx.Println(cli.Check(cli.CheckFail, "Storage start-up", err.Error()))
		return fmt.Errorf("one or more health checks failed")
	}

	hasError := false
	for _, c := range checks {
		if c.needsDB && !a.Relational() {
			ctx.Println(cli.Check(cli.CheckSkipped, c.name, "(fallback store in use)"))
			continue
		}
		err := c.run(ctx, a)
		var warn errWarn
		switch {
		case err == nil:
			ctx.Println(cli.Check(cli.CheckOK, c.name, ""))
		case errors.As(err, &warn):
			ctx.Println(cli.Check(cli.CheckWarn, c.name, warn.msg))
		default:
			ctx.Println(cli.Check(cli.CheckFail, c.name, "Error: "+err.Error()))
			hasError = true
		}
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkEngine(ctx *cli.Context, a *app.App) error {
	if a.Config.Storage.ForceFallback {
		return warnf("disabled by storage.force_fallback; using %s", a.Fallback.Path())
	}
	if !a.Probe.Available(ctx.Ctx) {
		return warnf("unavailable; using %s", a.Fallback.Path())
	}
	if !a.Relational() {
		return warnf("database failed to open; using %s", a.Fallback.Path())
	}
	return nil
}

func checkDBReachable(ctx *cli.Context, a *app.App) error {
	db := a.SQLite.DB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	var result int
	if err := db.QueryRowContext(ctx.Ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context, a *app.App) error {
	st, err := a.SQLite.MigrationStatus(ctx.Ctx)
	if err != nil {
		return err
	}
	if st.Current() > st.Latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", st.Current(), st.Latest)
	}
	if len(st.Pending) > 0 {
		return fmt.Errorf("migrations incomplete: pending %v", st.Pending)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context, a *app.App) error {
	backups, err := a.Backups.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return warnf("no backups found - consider creating one with 'keel backup create'")
	}
	return nil
}

func checkValidation(ctx *cli.Context, a *app.App) error {
	loc := a.Config.Location()
	counters, err := a.Repos.Counters.GetAll(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("failed to get counters: %w", err)
	}
	for _, c := range counters {
		history, err := a.Repos.Counters.History(ctx.Ctx, c.ID)
		if err != nil {
			return err
		}
		for day := range history {
			if _, err := temporal.ParseDateKey(day, loc); err != nil {
				return fmt.Errorf("counter %s has malformed history day %q", c.DisplayName, day)
			}
		}
	}

	sessions, err := a.Repos.Sessions.GetAll(ctx.Ctx, "")
	if err != nil {
		return fmt.Errorf("failed to get sessions: %w", err)
	}
	open := make(map[string]int)
	for _, s := range sessions {
		if s.EndAt == nil {
			open[s.Kind]++
			continue
		}
		if !s.EndAt.After(s.StartAt) {
			return fmt.Errorf("session %s ends before it starts", s.ID)
		}
	}
	for kind, n := range open {
		if n > 1 {
			return fmt.Errorf("%d open %s sessions", n, kind)
		}
	}
	return nil
}

func checkFallbackDrained(ctx *cli.Context, a *app.App) error {
	has, err := storage.HasData(ctx.Ctx, a.Fallback, constants.SettingSyncFolderHandle)
	if err != nil {
		return err
	}
	if has {
		return warnf("%s still holds records; they move into the database on the next start", a.Fallback.Path())
	}
	return nil
}

func checkSync(ctx *cli.Context, a *app.App) error {
	t := a.Engine.Transport()
	if t.Name() == constants.SyncProviderNone {
		return nil
	}
	if !t.IsConfigured(ctx.Ctx) {
		return warnf("provider %q is selected but not usable", t.Name())
	}
	if !a.Relational() {
		return warnf("fallback store in use; nothing is synced")
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context, a *app.App) error {
	now := ctx.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, err := temporal.LoadLocation(a.Config.Timezone); err != nil {
		return err
	}
	return nil
}
