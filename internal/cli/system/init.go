package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/keel/internal/backup"
	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/storage"
	"github.com/julianstephens/keel/internal/storage/kv"
	"github.com/julianstephens/keel/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing database before initialization."`
	Source string `help:"keel.db or keel.kv.json file to import records from. The file is left untouched."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	dbPath := ctx.Config.DBPath()
	if c.Source != "" {
		absSource, err := filepath.Abs(c.Source)
		if err != nil {
			return fmt.Errorf("failed to resolve source path: %w", err)
		}
		absDB, err := filepath.Abs(dbPath)
		if err == nil && absSource == absDB {
			return fmt.Errorf("source and destination are the same file: %s", dbPath)
		}
		c.Source = absSource
	}

	if c.Force {
		if ctx.Started() {
			if err := ctx.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
		}
		for _, path := range []string{dbPath, dbPath + "-journal", ctx.Config.FallbackPath()} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to delete %s: %w", path, err)
			}
		}
		ctx.Printf("Deleted existing data in: %s\n", ctx.Config.DataDir)
	}

	a, err := ctx.App()
	if err != nil {
		return err
	}
	ctx.Printf("Initialized keel storage at: %s (%s)\n", a.Provider.Path(), a.Provider.Backend())

	if c.Source != "" {
		ctx.Printf("Importing records from: %s\n", c.Source)
		res, err := importFrom(ctx, c.Source, a.Provider)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		if res.Total() > 0 && a.Relational() {
			a.Engine.Notify()
		}
		ctx.Println(cli.Success("Imported %d settings, %d counters, %d sessions, %d entries, %d practice entries",
			res.Settings, res.Counters, res.Sessions, res.Entries, res.Practice))
		for _, sk := range res.Skipped {
			ctx.Println(cli.Warning("Skipped %s %s: %s", sk.Kind, sk.ID, sk.Reason))
		}
	}
	return nil
}

// importFrom copies source to a scratch directory and transfers from the
// copy, since Transfer drains its source.
func importFrom(ctx *cli.Context, source string, dst storage.Provider) (storage.TransferResult, error) {
	var res storage.TransferResult
	if _, err := os.Stat(source); err != nil {
		return res, err
	}
	tmp, err := os.MkdirTemp("", constants.AppName+"-import-")
	if err != nil {
		return res, err
	}
	defer os.RemoveAll(tmp)

	var src storage.Provider
	if strings.HasSuffix(source, ".json") {
		scratch := filepath.Join(tmp, constants.FallbackFileName)
		if err := backup.CopyFile(source, scratch); err != nil {
			return res, err
		}
		src = kv.NewProvider(kv.NewStore(scratch))
	} else {
		if err := backup.Verify(ctx.Ctx, source); err != nil {
			return res, fmt.Errorf("source is not a valid database: %w", err)
		}
		scratch := filepath.Join(tmp, constants.DatabaseFileName)
		if err := backup.CopyFile(source, scratch); err != nil {
			return res, err
		}
		src = sqlite.NewStore(scratch)
	}
	if err := src.Init(ctx.Ctx); err != nil {
		return res, err
	}
	defer src.Close()

	return storage.Transfer(ctx.Ctx, src, dst, constants.SettingSyncFolderHandle)
}
