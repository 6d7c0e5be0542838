package practice

import (
	"fmt"
	"strings"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/repository"
	"github.com/julianstephens/keel/internal/temporal"
)

type PracticeCmd struct {
	Set     PracticeSetCmd     `cmd:"" help:"Write the content of a slot."`
	Week    PracticeWeekCmd    `cmd:"" help:"Show one week of practice." default:"1"`
	History PracticeHistoryCmd `cmd:"" help:"Show every recorded week."`
	Delete  PracticeDeleteCmd  `cmd:"" help:"Clear a slot."`
}

// period returns p, or the current period when p is zero.
func period(ctx *cli.Context, repos *repository.Set, p int) (int, error) {
	if p != 0 {
		return p, nil
	}
	return repos.Practice.CurrentPeriod(ctx.Ctx)
}

func parseSlot(s string) models.PracticeSlot {
	return models.PracticeSlot(strings.ToLower(strings.TrimSpace(s)))
}

type PracticeSetCmd struct {
	Slot    string `arg:"" help:"mon, tue, wed, thu, fri, sat or review."`
	Content string `arg:"" help:"Slot content."`
	Period  int    `help:"Period 1-52 (default: current week)."`
}

func (c *PracticeSetCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	p, err := period(ctx, repos, c.Period)
	if err != nil {
		return err
	}
	e, err := repos.Practice.Upsert(ctx.Ctx, p, parseSlot(c.Slot), c.Content)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Saved week %d %s", e.Period, e.Slot))
	return nil
}

type PracticeWeekCmd struct {
	Period int `help:"Period 1-52 (default: current week)."`
}

func (c *PracticeWeekCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	p, err := period(ctx, repos, c.Period)
	if err != nil {
		return err
	}
	list, err := repos.Practice.EntriesForWeek(ctx.Ctx, p)
	if err != nil {
		return err
	}

	mode, err := repos.Settings.PeriodMode(ctx.Ctx)
	if err != nil {
		return err
	}
	start, _, err := repos.Settings.PracticeStartDate(ctx.Ctx)
	if err != nil {
		return err
	}
	loc := ctx.Location()
	from, to := temporal.PeriodRange(p, mode, start, temporal.StartOfDay(ctx.Now(), loc))

	ctx.Println(cli.Title(fmt.Sprintf("Week %d", p)) + "  " +
		cli.Muted(fmt.Sprintf("%s to %s", temporal.DateKey(from, loc), temporal.DateKey(temporal.AddDays(to, -1), loc))))

	bySlot := make(map[models.PracticeSlot]string, len(list))
	for _, e := range list {
		bySlot[e.Slot] = e.Content
	}
	for _, slot := range models.PracticeSlots {
		content, ok := bySlot[slot]
		if !ok {
			content = cli.Muted("-")
		}
		ctx.Printf("  %-7s %s\n", slot, content)
	}
	return nil
}

type PracticeHistoryCmd struct{}

func (c *PracticeHistoryCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	list, err := repos.Practice.EntriesHistory(ctx.Ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Println("No practice entries yet.")
		return nil
	}
	current := -1
	for _, e := range list {
		if e.Period != current {
			current = e.Period
			ctx.Println(cli.Title(fmt.Sprintf("Week %d", current)))
		}
		ctx.Printf("  %-7s %s\n", e.Slot, e.Content)
	}
	return nil
}

type PracticeDeleteCmd struct {
	Slot   string `arg:"" help:"Slot to clear."`
	Period int    `help:"Period 1-52 (default: current week)."`
}

func (c *PracticeDeleteCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	p, err := period(ctx, repos, c.Period)
	if err != nil {
		return err
	}
	slot := parseSlot(c.Slot)
	if err := repos.Practice.Delete(ctx.Ctx, p, slot); err != nil {
		return err
	}
	ctx.Println(cli.Success("Cleared week %d %s", p, slot))
	return nil
}
