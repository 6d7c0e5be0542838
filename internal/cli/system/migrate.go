package system

import (
	"fmt"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/migration"
	"github.com/julianstephens/keel/internal/storage/sqlite"
)

type MigrateCmd struct {
	Status bool `help:"Show applied and pending migrations without applying anything."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if !a.Relational() {
		return fmt.Errorf("migrate needs the database; the fallback store is in use")
	}
	db := a.SQLite.DB()
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	ms, err := sqlite.Migrations()
	if err != nil {
		return err
	}
	runner := migration.NewRunner(db, ms)

	if c.Status {
		st, err := runner.Status(ctx.Ctx)
		if err != nil {
			return err
		}
		ctx.Printf("Current version: %d\n", st.Current())
		ctx.Printf("Latest version:  %d\n", st.Latest)
		ctx.Printf("Applied:         %v\n", st.Applied)
		if len(st.Pending) > 0 {
			ctx.Printf("Pending:         %v\n", st.Pending)
		}
		return nil
	}

	count, err := runner.WithLogger(func(msg string) {
		ctx.Println(msg)
	}).Run(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		ctx.Println("No migrations to apply. Database is up to date.")
	} else {
		ctx.Printf("\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
