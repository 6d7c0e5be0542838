package counters

import (
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/repository"
	"github.com/julianstephens/keel/internal/temporal"
)

type CounterCmd struct {
	Add     CounterAddCmd     `cmd:"" help:"Add a new counter."`
	List    CounterListCmd    `cmd:"" help:"List counters with their streaks." default:"1"`
	Show    CounterShowCmd    `cmd:"" help:"Show a counter in detail."`
	Edit    CounterEditCmd    `cmd:"" help:"Edit a counter."`
	Toggle  CounterToggleCmd  `cmd:"" help:"Toggle a day between maintained and reset."`
	Renew   CounterRenewCmd   `cmd:"" help:"Record a renewed commitment."`
	Reorder CounterReorderCmd `cmd:"" help:"Move counters to the front in the given order."`
	Delete  CounterDeleteCmd  `cmd:"" help:"Delete a counter and its history."`
}

// resolve finds a counter by id, id prefix or case-insensitive name.
func resolve(ctx *cli.Context, repos *repository.Set, ref string) (models.Counter, error) {
	all, err := repos.Counters.GetAll(ctx.Ctx)
	if err != nil {
		return models.Counter{}, err
	}
	ids := make([]string, len(all))
	for i, c := range all {
		if strings.EqualFold(c.DisplayName, strings.TrimSpace(ref)) {
			return c, nil
		}
		ids[i] = c.ID
	}
	id, err := cli.MatchID(ref, ids)
	if err != nil {
		return models.Counter{}, fmt.Errorf("counter %w", err)
	}
	return repos.Counters.Get(ctx.Ctx, id)
}

type CounterAddCmd struct {
	Name    string `arg:"" help:"Display name."`
	Private string `help:"Private name, shown only in detail views."`
	Start   string `help:"Start date, YYYY-MM-DD or natural language (default: now)."`
	Notes   string `help:"Notes."`
}

func (c *CounterAddCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}

	in := models.CounterInput{DisplayName: c.Name}
	if c.Private != "" {
		in.PrivateName = &c.Private
	}
	if c.Notes != "" {
		in.Notes = &c.Notes
	}
	if c.Start != "" {
		start, err := cli.ParseDate(c.Start, ctx.Now(), ctx.Location())
		if err != nil {
			return err
		}
		in.StartDate = start
	}

	counter, err := repos.Counters.Create(ctx.Ctx, in)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Added counter: %s (%s)", counter.DisplayName, cli.ShortID(counter.ID)))
	return nil
}

type CounterListCmd struct{}

func (c *CounterListCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	counters, err := repos.Counters.GetAll(ctx.Ctx)
	if err != nil {
		return err
	}
	if len(counters) == 0 {
		ctx.Println("No counters found.")
		return nil
	}

	ctx.Println(cli.Title("Counters"))
	for _, counter := range counters {
		stats, err := repos.Counters.Stats(ctx.Ctx, counter.ID)
		if err != nil {
			return err
		}
		ctx.Printf("  %s  %-24s %5d days  %s\n",
			cli.Muted(cli.ShortID(counter.ID)),
			counter.DisplayName,
			stats.CurrentStreakDays,
			cli.Muted(fmt.Sprintf("(longest %d)", stats.LongestStreakDays)),
		)
	}
	return nil
}

type CounterShowCmd struct {
	Counter string `arg:"" help:"Counter id, id prefix or name."`
	History bool   `help:"List recorded resets."`
}

func (c *CounterShowCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	counter, err := resolve(ctx, repos, c.Counter)
	if err != nil {
		return err
	}
	stats, err := repos.Counters.Stats(ctx.Ctx, counter.ID)
	if err != nil {
		return err
	}

	loc := ctx.Location()
	ctx.Println(cli.Title(counter.DisplayName))
	if counter.PrivateName != nil {
		ctx.Printf("  Private name:   %s\n", *counter.PrivateName)
	}
	ctx.Printf("  ID:             %s\n", counter.ID)
	ctx.Printf("  Started:        %s\n", temporal.DateKey(counter.StartDate, loc))
	ctx.Printf("  Current streak: %d days (since %s)\n", stats.CurrentStreakDays,
		counter.CurrentStreakStart.In(loc).Format("2006-01-02 15:04"))
	ctx.Printf("  Elapsed:        %s\n", FormatElapsed(stats.Elapsed))
	ctx.Printf("  Longest streak: %d days\n", stats.LongestStreakDays)
	ctx.Printf("  Resets:         %d\n", stats.ResetCount)
	if counter.LastRenewalAt != nil {
		ctx.Printf("  Last renewed:   %s\n", temporal.DateKey(*counter.LastRenewalAt, loc))
	}
	if counter.Notes != nil {
		ctx.Printf("  Notes:          %s\n", *counter.Notes)
	}

	if c.History {
		history, err := repos.Counters.History(ctx.Ctx, counter.ID)
		if err != nil {
			return err
		}
		days := make([]string, 0, len(history))
		for day, maintained := range history {
			if !maintained {
				days = append(days, day)
			}
		}
		slices.Sort(days)
		ctx.Println()
		if len(days) == 0 {
			ctx.Println("  No resets recorded.")
		}
		for _, day := range days {
			ctx.Printf("  reset %s\n", day)
		}
	}
	return nil
}

// FormatElapsed renders the calendar-aware part of an elapsed duration.
func FormatElapsed(e models.Elapsed) string {
	var parts []string
	if e.Years > 0 {
		parts = append(parts, plural(e.Years, "year"))
	}
	if e.Months > 0 {
		parts = append(parts, plural(e.Months, "month"))
	}
	if e.RemainingDays > 0 || len(parts) == 0 {
		parts = append(parts, plural(e.RemainingDays, "day"))
	}
	return fmt.Sprintf("%s, %02d:%02d:%02d", strings.Join(parts, " "), e.Hours, e.Minutes, e.Seconds)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

type CounterEditCmd struct {
	Counter string  `arg:"" help:"Counter id, id prefix or name."`
	Name    *string `help:"New display name."`
	Private *string `help:"Private name (empty to clear)."`
	Start   *string `help:"New start date."`
	Notes   *string `help:"Notes (empty to clear)."`
}

func (c *CounterEditCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	counter, err := resolve(ctx, repos, c.Counter)
	if err != nil {
		return err
	}

	patch := models.CounterPatch{
		DisplayName: c.Name,
		PrivateName: c.Private,
		Notes:       c.Notes,
	}
	if c.Start != nil {
		start, err := cli.ParseDate(*c.Start, ctx.Now(), ctx.Location())
		if err != nil {
			return err
		}
		patch.StartDate = &start
	}
	if patch == (models.CounterPatch{}) {
		ctx.Println("No changes specified.")
		return nil
	}

	updated, err := repos.Counters.Update(ctx.Ctx, counter.ID, patch)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Updated counter: %s", updated.DisplayName))
	return nil
}

type CounterToggleCmd struct {
	Counter string `arg:"" help:"Counter id, id prefix or name."`
	Date    string `help:"Day to toggle (default: today)." default:"today"`
}

func (c *CounterToggleCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	counter, err := resolve(ctx, repos, c.Counter)
	if err != nil {
		return err
	}
	day, err := cli.ParseDate(c.Date, ctx.Now(), ctx.Location())
	if err != nil {
		return err
	}

	updated, err := repos.Counters.ToggleDay(ctx.Ctx, counter.ID, day)
	if err != nil {
		return err
	}
	history, err := repos.Counters.History(ctx.Ctx, counter.ID)
	if err != nil {
		return err
	}

	key := temporal.DateKey(day, ctx.Location())
	if maintained, ok := history[key]; ok && !maintained {
		ctx.Println(cli.Warning("%s reset on %s", updated.DisplayName, key))
	} else {
		ctx.Println(cli.Success("%s maintained on %s", updated.DisplayName, key))
	}
	return nil
}

type CounterRenewCmd struct {
	Counter string `arg:"" help:"Counter id, id prefix or name."`
}

func (c *CounterRenewCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	counter, err := resolve(ctx, repos, c.Counter)
	if err != nil {
		return err
	}
	updated, err := repos.Counters.Renew(ctx.Ctx, counter.ID)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Renewed %s on %s", updated.DisplayName,
		updated.LastRenewalAt.In(ctx.Location()).Format(constants.DateFormat)))
	return nil
}

type CounterReorderCmd struct {
	Counters []string `arg:"" help:"Counters in the desired order."`
}

func (c *CounterReorderCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(c.Counters))
	for _, ref := range c.Counters {
		counter, err := resolve(ctx, repos, ref)
		if err != nil {
			return err
		}
		ids = append(ids, counter.ID)
	}
	if err := repos.Counters.Reorder(ctx.Ctx, ids); err != nil {
		return err
	}
	ctx.Println(cli.Success("Reordered counters"))
	return nil
}

type CounterDeleteCmd struct {
	Counter string `arg:"" help:"Counter id, id prefix or name."`
}

func (c *CounterDeleteCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	counter, err := resolve(ctx, repos, c.Counter)
	if err != nil {
		return err
	}
	if err := repos.Counters.Delete(ctx.Ctx, counter.ID); err != nil {
		return err
	}
	ctx.Println(cli.Success("Deleted counter: %s", counter.DisplayName))
	return nil
}
