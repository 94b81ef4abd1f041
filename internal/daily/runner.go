// Package daily runs the once-a-day pipeline: pick the chores due on a
// date, write them into the daily note, and print the receipt.
package daily

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chorenote/internal/config"
	appLog "chorenote/internal/log"
	"chorenote/internal/model"
	"chorenote/internal/note"
	"chorenote/internal/printer"
	"chorenote/internal/quote"
	"chorenote/internal/recur"
)

const quoteTimeout = 15 * time.Second

// Runner executes daily runs against the current configuration. Runs are
// serialized, so a cron tick and a manual trigger never print at the same
// time. Running twice for the same date rewrites the same note.
type Runner struct {
	mu sync.Mutex

	config  func() *config.Config
	quotes  quote.Source
	printer printer.Printer
}

// Option customizes a Runner.
type Option func(*Runner)

// WithQuotes replaces the quote source built from config.
func WithQuotes(q quote.Source) Option {
	return func(r *Runner) { r.quotes = q }
}

// WithPrinter replaces the network printer built from config, e.g. with a
// printer.TextPrinter for dry runs.
func WithPrinter(p printer.Printer) Option {
	return func(r *Runner) { r.printer = p }
}

// NewRunner creates a Runner. current is called at the start of every run
// so config reloads take effect on the next run.
func NewRunner(current func() *config.Config, opts ...Option) *Runner {
	r := &Runner{config: current}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Plan computes the due chores for date without any side effects.
func (r *Runner) Plan(date recur.Date) (model.DailyPlan, error) {
	return plan(r.config(), date)
}

func plan(cfg *config.Config, date recur.Date) (model.DailyPlan, error) {
	events, err := cfg.EventDefinitions()
	if err != nil {
		return model.DailyPlan{}, err
	}
	due, err := recur.SelectDueEvents(events, date)
	if err != nil {
		return model.DailyPlan{}, err
	}
	names := recur.Names(due)
	return model.DailyPlan{
		Date:    date,
		Weekday: date.Weekday().String(),
		Tasks:   names,
		Body:    note.Body(names),
	}, nil
}

// Run performs the daily run for date. Configuration errors abort before
// any output is produced. Failures of the note, quote or printer steps are
// logged and returned joined, alongside a plan that reflects what did
// succeed.
func (r *Runner) Run(ctx context.Context, date recur.Date) (model.DailyPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg := r.config()
	p, err := plan(cfg, date)
	if err != nil {
		appLog.Error("daily run aborted: invalid configuration", err, "date", date.String())
		return model.DailyPlan{}, err
	}

	if len(p.Tasks) == 0 {
		appLog.Info("no tasks today", "date", date.String())
	} else {
		appLog.Info("tasks today", "date", date.String(), "tasks", p.Tasks)
	}

	var errs []error

	if cfg.Note.DailyDir != "" && cfg.Note.TemplatePath != "" {
		path, err := note.WriteDaily(cfg.Note.TemplatePath, cfg.Note.DailyDir, cfg.Note.FileSuffix,
			note.Fields{Date: date, Body: p.Body})
		if err != nil {
			appLog.Error("daily note not written", err, "dir", cfg.Note.DailyDir)
			errs = append(errs, err)
		} else {
			p.NotePath = path
			appLog.Info("daily note written", "path", path)
		}
	}

	if src := r.quoteSource(cfg); src != nil {
		qctx, cancel := context.WithTimeout(ctx, quoteTimeout)
		q, err := src.Quote(qctx, date)
		cancel()
		if err != nil {
			appLog.Error("quote unavailable", err, "date", date.String())
			errs = append(errs, fmt.Errorf("quote: %w", err))
		} else {
			p.Quote = &q
		}
	}

	// Nothing is printed on a day without chores.
	if len(p.Tasks) > 0 {
		rc := receipt(p)
		appLog.Debug("receipt rendered", "text", rc.Text(cfg.Printer.Width))
		if pr := r.printerFor(cfg); pr != nil {
			if err := pr.Print(ctx, rc); err != nil {
				appLog.Error("receipt not printed", err, "date", date.String())
				errs = append(errs, err)
			} else {
				p.Printed = true
			}
		}
	}

	return p, errors.Join(errs...)
}

func (r *Runner) quoteSource(cfg *config.Config) quote.Source {
	if r.quotes != nil {
		return r.quotes
	}
	if !cfg.Quote.Enabled {
		return nil
	}
	return quote.NewClient(cfg.Quote.URL, cfg.Quote.CacheDir)
}

func (r *Runner) printerFor(cfg *config.Config) printer.Printer {
	if r.printer != nil {
		return r.printer
	}
	if cfg.Printer.Address == "" {
		return nil
	}
	return printer.NewESCPOS(cfg.Printer.Address, cfg.Printer.Width, cfg.PrinterTimeout())
}

func receipt(p model.DailyPlan) printer.Receipt {
	r := printer.Receipt{Date: p.Date.String(), Body: p.Body}
	if p.Quote != nil {
		r.Quote = p.Quote.Text
		r.Author = p.Quote.Author
	}
	return r
}
