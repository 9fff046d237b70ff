package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/kbukum/scalestore/apicache"
	"github.com/kbukum/scalestore/app"
	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/config"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/settings"
	"github.com/kbukum/scalestore/version"
)

const usage = `usage: scalestore [-config file] [-env file] <command> [args]

commands:
  version
  status
  cache list [-limit n]
  cache show <api> [params...]
  cache delete <api> [params...]
  cache purge
  settings list
  settings get <name>
  settings set [-description text] <name> <value>
  settings reset <name>
`

type cli struct {
	app    *app.Context
	stdout io.Writer
	now    func() time.Time
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scalestore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := fs.String("config", "", "config file (default: search ./config.yml)")
	envFile := fs.String("env", "", ".env file (default: search ./.env)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	if fs.Arg(0) == "version" {
		fmt.Fprintln(stdout, version.Get())
		return 0
	}

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	cfg, err := app.LoadConfig(opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log := logger.Init(cfg.Logging, cfg.Name, stderr)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close(context.Background()) //nolint:errcheck // best effort on exit

	c := &cli{app: a, stdout: stdout, now: time.Now}
	if err := c.dispatch(ctx, fs.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fs.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func (c *cli) dispatch(ctx context.Context, args []string) error {
	switch args[0] {
	case "status":
		return c.status(ctx)
	case "cache":
		if len(args) < 2 {
			return errUsage
		}
		switch args[1] {
		case "list":
			return c.cacheList(ctx, args[2:])
		case "show":
			return c.cacheShow(ctx, args[2:])
		case "delete":
			return c.cacheDelete(ctx, args[2:])
		case "purge":
			return c.cachePurge(ctx)
		}
	case "settings":
		if len(args) < 2 {
			return errUsage
		}
		switch args[1] {
		case "list":
			return c.settingsList(ctx)
		case "get":
			return c.settingsGet(ctx, args[2:])
		case "set":
			return c.settingsSet(ctx, args[2:])
		case "reset":
			return c.settingsReset(ctx, args[2:])
		}
	}
	return errUsage
}

func (c *cli) status(ctx context.Context) error {
	descriptions := make(map[string]component.Description)
	for _, d := range c.app.Components.Describe() {
		descriptions[d.Type] = d
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMPONENT\tSTATUS\tDETAILS")
	for _, h := range c.app.Health(ctx) {
		details := descriptions[h.Name].Details
		if h.Message != "" {
			details = h.Message
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", h.Name, h.Status, details)
	}
	return w.Flush()
}

func (c *cli) cacheList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cache list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 0, "maximum entries (0 = all)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	entries, err := c.app.Cache.Entries(ctx, *limit)
	if err != nil {
		return err
	}
	now := c.now()
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTTL\tCACHED\tSTATE")
	for _, e := range entries {
		state := "valid"
		if !e.Valid(now) {
			state = "expired"
		}
		fmt.Fprintf(w, "%s\t%ds\t%s\t%s\n", e.ID, e.TTL,
			time.UnixMilli(e.CacheTime).UTC().Format(time.RFC3339), state)
	}
	return w.Flush()
}

func cacheRequest(args []string) (apicache.Request, error) {
	if len(args) == 0 {
		return apicache.Request{}, errUsage
	}
	return apicache.Request{API: args[0], Parameters: args[1:]}, nil
}

type entryView struct {
	ID        string          `json:"id"`
	TTL       int64           `json:"ttl"`
	CacheTime int64           `json:"cacheTime"`
	ExpiresAt string          `json:"expiresAt"`
	Valid     bool            `json:"valid"`
	Result    json.RawMessage `json:"result"`
}

func (c *cli) cacheShow(ctx context.Context, args []string) error {
	req, err := cacheRequest(args)
	if err != nil {
		return err
	}
	e, err := c.app.Cache.Lookup(ctx, req.CacheID())
	if err != nil {
		return err
	}
	if e == nil {
		return fmt.Errorf("no cache entry %q", req.CacheID())
	}

	view := entryView{
		ID:        e.ID,
		TTL:       e.TTL,
		CacheTime: e.CacheTime,
		ExpiresAt: e.ExpiresAt().UTC().Format(time.RFC3339),
		Valid:     e.Valid(c.now()),
		Result:    json.RawMessage(e.Result),
	}
	if !json.Valid(view.Result) {
		view.Result, _ = json.Marshal(e.Result)
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func (c *cli) cacheDelete(ctx context.Context, args []string) error {
	req, err := cacheRequest(args)
	if err != nil {
		return err
	}
	if err := c.app.Cache.DeleteCache(ctx, req); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "deleted %s\n", req.CacheID())
	return nil
}

func (c *cli) cachePurge(ctx context.Context) error {
	n, err := c.app.Cache.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "purged %d expired entries\n", n)
	return nil
}

func (c *cli) settingsList(ctx context.Context) error {
	all, err := c.app.Settings.All(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE\tDESCRIPTION")
	for _, s := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, s.Value, s.Description)
	}
	return w.Flush()
}

func (c *cli) settingsGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	s, err := c.app.Settings.Get(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, s.Value)
	return nil
}

func (c *cli) settingsSet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	description := fs.String("description", "", "setting description")
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		return errUsage
	}
	saved, err := c.app.Settings.Set(ctx, settings.Setting{
		Name:        fs.Arg(0),
		Value:       fs.Arg(1),
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s=%s\n", saved.Name, strconv.Quote(saved.Value))
	return nil
}

func (c *cli) settingsReset(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := c.app.Settings.Reset(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "reset %s\n", args[0])
	return nil
}
