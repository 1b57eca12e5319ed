// Package scheduler drives the monthly invoice generation. Once a day, at a
// configured local hour, it checks whether today is the last business day of
// the month and, if so, materializes an invoice from every active template.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fakturnik/fakturnik/model"
)

// Scheduler runs the daily generation check.
type Scheduler struct {
	Store    *model.Store
	Renderer model.DocumentRenderer
	Mailer   model.EmailSender
	Logger   *slog.Logger
	Location *time.Location
	Hour     int // local hour of the daily check, 0-23
}

func New(store *model.Store, renderer model.DocumentRenderer, mailer model.EmailSender, logger *slog.Logger, loc *time.Location, hour int) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if hour < 0 || hour > 23 {
		hour = 18
	}
	return &Scheduler{
		Store:    store,
		Renderer: renderer,
		Mailer:   mailer,
		Logger:   logger,
		Location: loc,
		Hour:     hour,
	}
}

// nextRun returns the next occurrence of the configured hour after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	now = now.In(s.Location)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, 0, 0, 0, s.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, performing the daily check at the
// configured hour.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		next := s.nextRun(time.Now().In(s.Location))
		s.Logger.Info("scheduler: next check", "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.Logger.Info("scheduler: stopped")
			return
		case <-timer.C:
			s.RunDailyCheck(time.Now().In(s.Location))
		}
	}
}

// RunDailyCheck generates the month's invoices when now is the last business
// day of its month, otherwise it does nothing.
func (s *Scheduler) RunDailyCheck(now time.Time) {
	if !model.IsLastBusinessDay(now) {
		s.Logger.Info("scheduler: not the last business day, skipping", "date", now.Format("2006-01-02"))
		return
	}
	s.GenerateMonthlyInvoices(now)
}

// GenerateMonthlyInvoices materializes an invoice for every active template
// for now's period. Each template is handled in isolation so one failure
// never blocks the rest; already-materialized templates are skipped.
func (s *Scheduler) GenerateMonthlyInvoices(now time.Time) {
	period := model.PeriodOf(now)
	templates, err := s.Store.ListActiveTemplates()
	if err != nil {
		s.Logger.Error("scheduler: loading active templates failed", "error", err)
		return
	}
	s.Logger.Info("scheduler: generating invoices", "period", period.String(), "templates", len(templates))

	var created, skipped, failed int
	for _, tpl := range templates {
		inv, err := s.Store.MaterializeInvoice(tpl, period, now, s.Renderer, s.Logger)
		switch {
		case errors.Is(err, model.ErrDuplicateInvoice):
			skipped++
			s.Logger.Info("scheduler: invoice already exists", "template", tpl.ID, "period", period.String())
			continue
		case err != nil:
			failed++
			s.Logger.Error("scheduler: materialization failed", "template", tpl.ID, "error", err)
			continue
		}
		created++

		if tpl.AutoSendEmail && tpl.RecipientEmail != "" {
			if err := s.Store.DeliverInvoiceEmail(inv, tpl.RecipientEmail, s.Mailer, s.Logger); err != nil {
				s.Logger.Error("scheduler: auto-send failed", "invoice", inv.Number, "error", err)
			}
		}
	}
	s.Logger.Info("scheduler: generation done",
		"period", period.String(), "created", created, "skipped", skipped, "failed", failed)
}
