// Command kwctl is the operator CLI: schema migrations, one-shot job runs and
// timer, SOS, check-in and settings operations on behalf of a user.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/and161185/kira-watch/internal/app"
	"github.com/and161185/kira-watch/internal/config"
	"github.com/and161185/kira-watch/internal/logging"
	"github.com/and161185/kira-watch/internal/migrate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintf(w, `kwctl
Usage:
  kwctl [-dsn DSN] [daemon flags] <cmd> [args]

Commands:
  version
  migrate    up | down | version
  jobs                                           (list scheduled jobs)
  run        <job>                               (run a job once now)
  timer      start   -user <uuid> -minutes <n> [-lat <f> -lng <f>] [-msg <text>]
  timer      stop    -user <uuid> -id <uuid>
  timer      extend  -user <uuid> -id <uuid> -minutes <n>
  timer      active  -user <uuid>
  sos        trigger -user <uuid> -lat <f> -lng <f>
  sos        cancel  -user <uuid> -id <uuid> [-reason <text>]
  checkin    record  -user <uuid> [-lat <f> -lng <f>] [-status <s>] [-mood <m>]
  checkin    schedule -user <uuid> -time HH:MM
  settings   set     -user <uuid> [-reminder HH:MM] [-delay <n>] [-notifications <bool>] [-zone <iana>]
  user       token   -user <uuid> -token <endpoint>
`)
}

// cli holds what commands need. open is called lazily so migrate and version work
// without a reachable database.
type cli struct {
	cfg  *config.Config
	out  io.Writer
	open func(ctx context.Context) (*app.App, func(), error)

	migrateUp      func(ctx context.Context, dsn string) error
	migrateDown    func(ctx context.Context, dsn string) error
	migrateVersion func(ctx context.Context, dsn string) (int64, error)
}

func (c *cli) printJSON(v any) {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// main parses global flags and dispatches the subcommand.
func main() {
	if err := config.LoadDotenv(); err != nil {
		fail(err)
	}
	flag.Usage = func() { usage(os.Stderr); flag.PrintDefaults() }
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fail(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fail(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		cfg: cfg,
		out: os.Stdout,
		open: func(ctx context.Context) (*app.App, func(), error) {
			deps, closeDeps, err := app.Connect(ctx, cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			a, err := app.Build(cfg, deps, logger, nil)
			if err != nil {
				closeDeps()
				return nil, nil, err
			}
			return a, closeDeps, nil
		},
		migrateUp:      migrate.Up,
		migrateDown:    migrate.Down,
		migrateVersion: migrate.Version,
	}

	err = c.run(ctx, flag.Args())
	switch {
	case errors.Is(err, errUsage):
		usage(os.Stderr)
		os.Exit(2)
	case err != nil:
		logger.Debug("command failed", zap.Error(err))
		fail(err)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "version":
		fmt.Fprintf(c.out, "kwctl %s (%s)\n", version, buildDate)
		return nil
	case "migrate":
		return c.migrate(ctx, rest)
	}

	a, closeApp, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	switch cmd {
	case "jobs":
		for _, name := range a.Scheduler.Jobs() {
			st, _ := a.Scheduler.Status(name)
			fmt.Fprintf(c.out, "%-18s %s\n", name, st.Spec)
		}
		return nil
	case "run":
		if len(rest) != 1 {
			return errUsage
		}
		rep, err := a.Scheduler.RunNow(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, rep.String())
		return nil
	case "timer":
		return c.timer(ctx, a, rest)
	case "sos":
		return c.sos(ctx, a, rest)
	case "checkin":
		return c.checkin(ctx, a, rest)
	case "settings":
		return c.settings(ctx, a, rest)
	case "user":
		return c.user(ctx, a, rest)
	}
	return errUsage
}

func (c *cli) migrate(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	switch args[0] {
	case "up":
		if err := c.migrateUp(ctx, c.cfg.DSN); err != nil {
			return err
		}
	case "down":
		if err := c.migrateDown(ctx, c.cfg.DSN); err != nil {
			return err
		}
	case "version":
	default:
		return errUsage
	}
	v, err := c.migrateVersion(ctx, c.cfg.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "schema version %d\n", v)
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
