package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"chorenote/internal/config"
	"chorenote/internal/daily"
	appLog "chorenote/internal/log"
	"chorenote/internal/printer"
	"chorenote/internal/recur"
	"chorenote/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	date       string
	noPrint    bool
	dump       bool
}

func main() {
	appLog.Info("chorenote starting", "version", "0.1.0")

	flags := parseFlags()

	if err := config.LoadEnvFile(); err != nil {
		appLog.Error("failed to load env file", err, "path", config.EnvFile)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	// A run with a malformed chore list must not produce any output.
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.SetLevel(appLog.Level(conf.LogLevel))
	if flags.dump {
		appLog.SetLevel(appLog.LevelDebug)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"schedule", conf.Schedule,
		"events", len(conf.Events),
		"printer", conf.Printer.Address,
		"note_dir", conf.Note.DailyDir,
		"once", flags.once,
		"no_print", flags.noPrint,
	)

	watcher := config.NewWatcher(flags.configPath, conf)

	var opts []daily.Option
	if flags.noPrint {
		opts = append(opts, daily.WithPrinter(printer.TextPrinter{W: os.Stdout, Width: conf.Printer.Width}))
	}
	runner := daily.NewRunner(watcher.Current, opts...)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.once || flags.date != "" {
		if err := runOnce(ctx, runner, watcher.Current(), flags.date); err != nil {
			os.Exit(1)
		}
		return
	}

	// Startup run, then on schedule.
	runToday(ctx, runner, watcher.Current())

	sched, err := startScheduler(ctx, runner, watcher)
	if err != nil {
		appLog.Error("failed to start scheduler", err, "schedule", conf.Schedule)
		os.Exit(1)
	}

	go func() {
		if err := watcher.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("config watcher stopped", err, "config_path", flags.configPath)
		}
	}()

	errCh := make(chan error, 1)
	if conf.Listen != "" {
		srv := web.NewServer(watcher.Current, runner)
		go func() { errCh <- srv.ListenAndServe(ctx, conf.Listen) }()
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		}
		cancel()
	}

	stopCtx := sched.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		appLog.Warn("daily run still in progress at shutdown")
	}
	appLog.Info("chorenote exiting")
}

// runOnce performs a single run for date, or today when date is empty.
func runOnce(ctx context.Context, runner *daily.Runner, cfg *config.Config, date string) error {
	day, err := today(cfg)
	if err != nil {
		appLog.Error("cannot resolve today", err)
		return err
	}
	if date != "" {
		if day, err = recur.ParseDate(date); err != nil {
			appLog.Error("invalid -date", err, "date", date)
			return err
		}
	}
	_, err = runner.Run(ctx, day)
	return err
}

func runToday(ctx context.Context, runner *daily.Runner, cfg *config.Config) {
	day, err := today(cfg)
	if err != nil {
		appLog.Error("cannot resolve today", err)
		return
	}
	// Failures are already logged by the runner.
	_, _ = runner.Run(ctx, day)
}

func today(cfg *config.Config) (recur.Date, error) {
	loc, err := cfg.Location()
	if err != nil {
		return recur.Date{}, err
	}
	return recur.DateOf(time.Now().In(loc)), nil
}

// startScheduler runs the daily job on cfg.Schedule and re-registers it
// when a reloaded config changes the schedule.
func startScheduler(ctx context.Context, runner *daily.Runner, watcher *config.Watcher) (*cron.Cron, error) {
	cfg := watcher.Current()
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	job := cron.FuncJob(func() { runToday(ctx, runner, watcher.Current()) })

	id, err := c.AddJob(cfg.Schedule, job)
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("scheduler started", "schedule", cfg.Schedule, "timezone", loc.String())

	// The cron location is fixed at construction, so a timezone change only
	// takes effect after a restart.
	var mu sync.Mutex
	schedule := cfg.Schedule
	watcher.OnChange(func(next *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		if next.Schedule == schedule {
			return
		}
		newID, err := c.AddJob(next.Schedule, job)
		if err != nil {
			appLog.Error("schedule not updated", err, "schedule", next.Schedule)
			return
		}
		c.Remove(id)
		id, schedule = newID, next.Schedule
		appLog.Info("schedule updated", "schedule", schedule)
	})
	return c, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/chorenote/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run once for today and exit")
	flag.StringVar(&cfg.date, "date", "", "Run once for this date (YYYY-MM-DD) and exit")
	flag.BoolVar(&cfg.noPrint, "no-print", false, "Write the receipt to stdout instead of the printer")
	flag.BoolVar(&cfg.dump, "dump", false, "Log the rendered receipt text")

	flag.Parse()

	return cfg
}
