package fasts

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/constants"
	"github.com/julianstephens/keel/internal/models"
	"github.com/julianstephens/keel/internal/repository"
	"github.com/julianstephens/keel/internal/temporal"
)

const kind = constants.SessionKindFasting

type FastCmd struct {
	Start  FastStartCmd  `cmd:"" help:"Start a fast."`
	End    FastEndCmd    `cmd:"" help:"End the running fast."`
	List   FastListCmd   `cmd:"" help:"List fasts." default:"1"`
	Hours  FastHoursCmd  `cmd:"" help:"Show fasting hours per day."`
	Delete FastDeleteCmd `cmd:"" help:"Delete a fast."`
}

type FastStartCmd struct {
	At    string `help:"Start time, e.g. \"2026-10-14 20:00\", \"19:30\" or \"2 hours ago\" (default: now)."`
	Notes string `help:"Notes."`
}

func (c *FastStartCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}

	var sess models.Session
	if c.At == "" && c.Notes == "" {
		sess, err = repos.Sessions.Start(ctx.Ctx, kind)
	} else {
		start, perr := cli.ParseInstant(c.At, ctx.Now(), ctx.Location())
		if perr != nil {
			return perr
		}
		in := models.SessionInput{Kind: kind, StartAt: start}
		if c.Notes != "" {
			in.Notes = &c.Notes
		}
		sess, err = repos.Sessions.Create(ctx.Ctx, in)
	}
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Fast started at %s", formatInstant(sess.StartAt, ctx.Location())))
	return nil
}

type FastEndCmd struct {
	At string `help:"End time (default: now)."`
}

func (c *FastEndCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}

	var sess models.Session
	if c.At == "" {
		sess, err = repos.Sessions.End(ctx.Ctx, kind)
	} else {
		sess, err = endAt(ctx, repos, c.At)
	}
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Fast ended after %s", formatDuration(sess.EndAt.Sub(sess.StartAt))))
	return nil
}

func endAt(ctx *cli.Context, repos *repository.Set, at string) (models.Session, error) {
	end, err := cli.ParseInstant(at, ctx.Now(), ctx.Location())
	if err != nil {
		return models.Session{}, err
	}
	active, err := repos.Sessions.ActiveSession(ctx.Ctx, kind)
	if err != nil {
		return models.Session{}, err
	}
	if active == nil {
		return models.Session{}, fmt.Errorf("%s: %w", kind, models.ErrNoOpenSession)
	}
	return repos.Sessions.Update(ctx.Ctx, active.ID, models.SessionPatch{EndAt: &end})
}

type FastListCmd struct {
	Limit int `help:"Show at most this many fasts, newest first." default:"10"`
}

func (c *FastListCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	sessions, err := repos.Sessions.GetAll(ctx.Ctx, kind)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		ctx.Println("No fasts recorded.")
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartAt.After(sessions[j].StartAt)
	})
	if c.Limit > 0 && len(sessions) > c.Limit {
		sessions = sessions[:c.Limit]
	}

	loc := ctx.Location()
	now := ctx.Now()
	ctx.Println(cli.Title("Fasts"))
	for _, s := range sessions {
		end := now
		status := cli.Muted("running")
		if s.EndAt != nil {
			end = *s.EndAt
			status = formatInstant(*s.EndAt, loc)
		}
		ctx.Printf("  %s  %s → %s  %s\n",
			cli.Muted(cli.ShortID(s.ID)),
			formatInstant(s.StartAt, loc),
			status,
			formatDuration(end.Sub(s.StartAt)),
		)
	}
	return nil
}

type FastHoursCmd struct {
	Date string `help:"Last day to report (default: today)." default:"today"`
	Days int    `help:"Number of days to report." default:"7"`
}

func (c *FastHoursCmd) Run(ctx *cli.Context) error {
	if c.Days < 1 {
		return fmt.Errorf("--days must be at least 1: %w", models.ErrInvalidInput)
	}
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	loc := ctx.Location()
	last, err := cli.ParseDate(c.Date, ctx.Now(), loc)
	if err != nil {
		return err
	}

	days := make([]time.Time, c.Days)
	for i := range days {
		days[i] = temporal.AddDays(last, i-c.Days+1)
	}
	hours, err := repos.Sessions.HoursForDates(ctx.Ctx, kind, days)
	if err != nil {
		return err
	}
	goal, hasGoal, err := repos.Settings.Goal(ctx.Ctx, kind)
	if err != nil {
		return err
	}

	ctx.Println(cli.Title("Fasting hours"))
	for _, day := range days {
		key := temporal.DateKey(day, loc)
		line := fmt.Sprintf("  %s %s  %5.1f h", key, day.Weekday().String()[:3], hours[key])
		if hasGoal && hours[key] >= goal {
			line += " " + cli.Success("goal")
		}
		ctx.Println(line)
	}
	return nil
}

type FastDeleteCmd struct {
	ID string `arg:"" help:"Fast id or id prefix."`
}

func (c *FastDeleteCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	sessions, err := repos.Sessions.GetAll(ctx.Ctx, kind)
	if err != nil {
		return err
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	id, err := cli.MatchID(c.ID, ids)
	if err != nil {
		return fmt.Errorf("fast %w", err)
	}
	if err := repos.Sessions.Delete(ctx.Ctx, id); err != nil {
		return err
	}
	ctx.Println(cli.Success("Deleted fast %s", cli.ShortID(id)))
	return nil
}

func formatInstant(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
}
