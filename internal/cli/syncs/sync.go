package syncs

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/constants"
)

type SyncCmd struct {
	Export     SyncExportCmd     `cmd:"" help:"Upload the database now."`
	Import     SyncImportCmd     `cmd:"" help:"Download the remote database if it is newer."`
	Status     SyncStatusCmd     `cmd:"" help:"Show sync configuration and timestamps." default:"1"`
	PickFolder SyncPickFolderCmd `cmd:"" name:"pick-folder" help:"Choose the folder used by the folder provider."`
	Watch      SyncWatchCmd      `cmd:"" help:"Upload changes made by other processes until interrupted."`
}

type SyncExportCmd struct{}

func (c *SyncExportCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if err := a.Engine.Export(ctx.Ctx); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	ctx.Println(cli.Success("Exported database via %s", a.Engine.Transport().Name()))
	return nil
}

type SyncImportCmd struct{}

func (c *SyncImportCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	replaced, err := a.Engine.Import(ctx.Ctx)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	if replaced {
		ctx.Println(cli.Success("Replaced local database with the newer remote copy"))
	} else {
		ctx.Println("Local database is up to date.")
	}
	return nil
}

type SyncStatusCmd struct{}

func (c *SyncStatusCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	st, err := a.Engine.Status(ctx.Ctx)
	if err != nil {
		return err
	}

	loc := ctx.Location()
	ctx.Println(cli.Title("Sync"))
	ctx.Printf("  Provider:   %s\n", st.Provider)
	if st.Configured {
		ctx.Printf("  Configured: %s\n", cli.Success("yes"))
	} else {
		ctx.Printf("  Configured: %s\n", cli.Warning("no"))
	}
	if !a.Relational() {
		ctx.Println("  " + cli.Warning("Using the fallback store; changes are not synced"))
	}
	ctx.Printf("  Local:      %s\n", stamp(st.LocalTime, loc))
	if st.HasRemote {
		ctx.Printf("  Remote:     %s\n", stamp(st.RemoteTime, loc))
	} else if st.Configured {
		ctx.Printf("  Remote:     %s\n", cli.Muted("none yet"))
	}
	if st.RemoteNewer {
		ctx.Println("  " + cli.Warning("Remote copy is newer; run 'keel sync import'"))
	}
	ctx.Printf("  State:      %s\n", st.State)
	if a.WatcherRunning() {
		ctx.Printf("  Watcher:    %s\n", cli.Success("running"))
	} else {
		ctx.Printf("  Watcher:    %s\n", cli.Muted("not running"))
	}
	if handle, ok, err := a.Repos.Settings.FolderHandle(); err == nil && ok {
		ctx.Printf("  Folder:     %s\n", handle.Path)
	}
	return nil
}

func stamp(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return cli.Muted("missing")
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}

type SyncPickFolderCmd struct {
	Dir    string `arg:"" optional:"" help:"Folder to sync into. Prompts when omitted."`
	Forget bool   `help:"Forget the chosen folder."`
}

func (c *SyncPickFolderCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	settings := a.Repos.Settings

	if c.Forget {
		if err := settings.ForgetFolder(); err != nil {
			return err
		}
		ctx.Println(cli.Success("Forgot the sync folder"))
		return nil
	}

	dir := c.Dir
	if dir == "" {
		dir, err = ctx.PromptFolder("Sync folder")
		if errors.Is(err, cli.ErrNotInteractive) {
			return fmt.Errorf("pass the folder as an argument when not running in a terminal")
		}
		if err != nil {
			return err
		}
	}

	handle, err := settings.SetFolder(dir)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Sync folder set to %s", handle.Path))
	if ctx.Config.Sync.Provider != constants.SyncProviderFolder {
		ctx.Println(cli.Warning("sync.provider is %q; set it to %q to use this folder",
			ctx.Config.Sync.Provider, constants.SyncProviderFolder))
	}
	return nil
}

type SyncWatchCmd struct{}

func (c *SyncWatchCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}
	if !a.Relational() {
		return fmt.Errorf("sync watch needs the database; the fallback store is in use")
	}
	if !a.Engine.Transport().IsConfigured(ctx.Ctx) {
		ctx.Println(cli.Warning("Sync is not configured; changes will not be uploaded"))
	}

	sigCtx, stop := signal.NotifyContext(ctx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx.Printf("Watching %s (Ctrl+C to stop)\n", a.Config.DBPath())
	if err := a.Watch(sigCtx); err != nil {
		return err
	}
	ctx.Println("Watcher stopped.")
	return nil
}
