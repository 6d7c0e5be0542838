package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/keel/internal/cli"
)

type ClearCmd struct {
	Yes bool `short:"y" help:"Clear without asking."`
}

func (c *ClearCmd) Run(ctx *cli.Context) error {
	a, err := ctx.App()
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := ctx.Confirm("Delete all data?",
			"Counters, sessions, entries, practice and settings are removed from this device. The sync folder choice is kept.")
		if errors.Is(err, cli.ErrNotInteractive) {
			return fmt.Errorf("pass --yes to clear without a terminal")
		}
		if err != nil {
			return err
		}
		if !ok {
			ctx.Println("Nothing was deleted.")
			return nil
		}
	}

	if err := a.ClearAll(ctx.Ctx); err != nil {
		return err
	}
	ctx.Println(cli.Success("All data cleared"))
	return nil
}
