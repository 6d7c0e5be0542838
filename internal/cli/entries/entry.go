package entries

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/keel/internal/cli"
	"github.com/julianstephens/keel/internal/models"
)

type EntryCmd struct {
	Add    EntryAddCmd    `cmd:"" help:"Add an entry."`
	List   EntryListCmd   `cmd:"" help:"List entries." default:"1"`
	Today  EntryTodayCmd  `cmd:"" help:"Show today's entries of a type."`
	Edit   EntryEditCmd   `cmd:"" help:"Edit an entry."`
	Delete EntryDeleteCmd `cmd:"" help:"Delete an entry."`
}

// ParseFields turns key=value pairs into entry fields. Values that parse as
// JSON keep their type, anything else is stored as a string. A pair with no
// value ("key=") maps to nil, which removes the key on update.
func ParseFields(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("field %q must look like key=value: %w", pair, models.ErrInvalidInput)
		}
		if raw == "" {
			fields[key] = nil
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		fields[key] = v
	}
	return fields, nil
}

// FormatFields renders fields sorted by key.
func FormatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return strings.Join(parts, " ")
}

func printEntry(ctx *cli.Context, e models.Entry) {
	line := fmt.Sprintf("  %s  %s  %-10s %s", cli.Muted(cli.ShortID(e.ID)), e.Day, e.Type, FormatFields(e.Fields))
	if e.Notes != nil {
		line += "  " + cli.Muted(*e.Notes)
	}
	ctx.Println(strings.TrimRight(line, " "))
}

type EntryAddCmd struct {
	Type   string   `arg:"" help:"Entry type, e.g. checkin or inventory."`
	Fields []string `name:"field" short:"f" sep:"none" help:"Field as key=value; repeatable."`
	Notes  string   `help:"Notes."`
	At     string   `help:"Creation time (default: now)."`
}

func (c *EntryAddCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	fields, err := ParseFields(c.Fields)
	if err != nil {
		return err
	}

	in := models.EntryInput{Type: c.Type, Fields: fields}
	if c.Notes != "" {
		in.Notes = &c.Notes
	}
	if c.At != "" {
		at, err := cli.ParseInstant(c.At, ctx.Now(), ctx.Location())
		if err != nil {
			return err
		}
		in.CreatedAt = &at
	}

	e, err := repos.Entries.Create(ctx.Ctx, in)
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Added %s entry for %s (%s)", e.Type, e.Day, cli.ShortID(e.ID)))
	return nil
}

type EntryListCmd struct {
	Type string `help:"Only entries of this type."`
}

func (c *EntryListCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	var list []models.Entry
	if c.Type != "" {
		list, err = repos.Entries.ByType(ctx.Ctx, c.Type)
	} else {
		list, err = repos.Entries.GetAll(ctx.Ctx)
	}
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Println("No entries found.")
		return nil
	}
	ctx.Println(cli.Title("Entries"))
	for _, e := range list {
		printEntry(ctx, e)
	}
	return nil
}

type EntryTodayCmd struct {
	Type string `arg:"" help:"Entry type."`
}

func (c *EntryTodayCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	list, err := repos.Entries.Today(ctx.Ctx, c.Type)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ctx.Printf("No %s entry today.\n", c.Type)
		return nil
	}
	for _, e := range list {
		printEntry(ctx, e)
	}
	return nil
}

type EntryEditCmd struct {
	ID     string   `arg:"" help:"Entry id or id prefix."`
	Fields []string `name:"field" short:"f" sep:"none" help:"Field as key=value; key= removes it. Repeatable."`
	Notes  *string  `help:"Notes (empty to clear)."`
}

func (c *EntryEditCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	id, err := resolve(ctx, c.ID)
	if err != nil {
		return err
	}
	fields, err := ParseFields(c.Fields)
	if err != nil {
		return err
	}
	if fields == nil && c.Notes == nil {
		ctx.Println("No changes specified.")
		return nil
	}

	e, err := repos.Entries.Update(ctx.Ctx, id, models.EntryPatch{Fields: fields, Notes: c.Notes})
	if err != nil {
		return err
	}
	ctx.Println(cli.Success("Updated %s entry %s", e.Type, cli.ShortID(e.ID)))
	return nil
}

type EntryDeleteCmd struct {
	ID string `arg:"" help:"Entry id or id prefix."`
}

func (c *EntryDeleteCmd) Run(ctx *cli.Context) error {
	repos, err := ctx.Repos()
	if err != nil {
		return err
	}
	id, err := resolve(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := repos.Entries.Delete(ctx.Ctx, id); err != nil {
		return err
	}
	ctx.Println(cli.Success("Deleted entry %s", cli.ShortID(id)))
	return nil
}

func resolve(ctx *cli.Context, ref string) (string, error) {
	repos, err := ctx.Repos()
	if err != nil {
		return "", err
	}
	all, err := repos.Entries.GetAll(ctx.Ctx)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(all))
	for i, e := range all {
		ids[i] = e.ID
	}
	id, err := cli.MatchID(ref, ids)
	if err != nil {
		return "", fmt.Errorf("entry %w", err)
	}
	return id, nil
}
