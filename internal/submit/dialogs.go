package submit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ibeckermayer/postbot/internal/telemetry"
	"github.com/ibeckermayer/postbot/internal/types"
	"github.com/ibeckermayer/postbot/internal/wait"
)

// maxMonthSteps bounds how far ahead the schedule pager may be advanced.
const maxMonthSteps = 24

// dialog is one optional composer setting: open it, fill it, then save or
// cancel.
type dialog struct {
	name string
	// viaOptions dialogs hide behind the composer's "more options" panel.
	viaOptions bool
	open       string
	save       string
	cancel     string
	fill       func(ctx context.Context, m *Machine) error
}

// dialog fills d and reports whether it was saved (or cancelled on purpose
// in debug mode). A failure cancels the dialog best effort.
func (m *Machine) dialog(ctx context.Context, d dialog) (ok bool) {
	ctx, span := telemetry.Start(ctx, "submit.dialog", attribute.String("dialog", d.name))
	defer func() {
		span.SetAttributes(attribute.Bool("ok", ok))
		span.End()
	}()

	m.status.Stage("setting %s", d.name)
	if err := m.fillDialog(ctx, d); err != nil {
		slog.WarnContext(ctx, "dialog failed", "dialog", d.name, "err", err)
		m.status.Warn("%s: %v", d.name, err)
		span.RecordError(err)
		if err := m.click(ctx, d.cancel); err != nil {
			slog.DebugContext(ctx, "could not cancel dialog", "dialog", d.name, "err", err)
		}
		return false
	}

	if m.cfg.Debug {
		if err := m.click(ctx, d.cancel); err != nil {
			slog.WarnContext(ctx, "could not cancel dialog", "dialog", d.name, "err", err)
		}
		m.status.Skipped(d.name)
		return true
	}
	if err := m.click(ctx, d.save); err != nil {
		slog.WarnContext(ctx, "could not save dialog", "dialog", d.name, "err", err)
		m.status.Warn("%s: %v", d.name, err)
		return false
	}
	m.status.OK("%s set", d.name)
	return true
}

func (m *Machine) fillDialog(ctx context.Context, d dialog) error {
	if d.viaOptions {
		if err := m.openOptions(ctx); err != nil {
			return err
		}
	}
	if err := m.click(ctx, d.open); err != nil {
		return err
	}
	return d.fill(ctx, m)
}

// openOptions shows the options panel: the toggle when there is one,
// otherwise a click on the empty part of the action bar.
func (m *Machine) openOptions(ctx context.Context) error {
	err := m.click(ctx, "more_options")
	if err == nil {
		return nil
	}
	slog.DebugContext(ctx, "no options toggle, trying the action bar", "err", err)
	if err2 := m.click(ctx, "composer_empty_space"); err2 != nil {
		return fmt.Errorf("failed to open options: %w", err2)
	}
	return nil
}

func (m *Machine) clickText(ctx context.Context, name, label string) error {
	el, err := m.res.FindByText(ctx, name, label)
	if err != nil {
		return err
	}
	return el.Click(ctx)
}

func expirationDialog(p types.Period) dialog {
	return dialog{
		name:       "expiration",
		viaOptions: true,
		open:       "expiration_open",
		save:       "expiration_save",
		cancel:     "expiration_cancel",
		fill: func(ctx context.Context, m *Machine) error {
			return m.clickText(ctx, "expiration_periods", p.Label())
		},
	}
}

func scheduleDialog(at time.Time, interval time.Duration) dialog {
	return dialog{
		name:       "schedule",
		viaOptions: true,
		open:       "schedule_open",
		save:       "schedule_save",
		cancel:     "schedule_cancel",
		fill: func(ctx context.Context, m *Machine) error {
			if err := m.pageToMonth(ctx, at, interval); err != nil {
				return err
			}
			if err := m.clickText(ctx, "schedule_days", strconv.Itoa(at.Day())); err != nil {
				return err
			}
			if err := m.fill(ctx, "schedule_hour", at.Format("3")); err != nil {
				return err
			}
			if err := m.fill(ctx, "schedule_minute", at.Format("04")); err != nil {
				return err
			}
			return m.clickText(ctx, "schedule_meridiem", at.Format("PM"))
		},
	}
}

// pageToMonth advances the calendar until its header names at's month.
func (m *Machine) pageToMonth(ctx context.Context, at time.Time, interval time.Duration) error {
	want := at.Format("January 2006")
	onMonth := func(ctx context.Context) bool {
		el, err := m.res.FindOne(ctx, "schedule_month")
		if err != nil {
			return false
		}
		text, _ := el.Text(ctx)
		return strings.EqualFold(strings.TrimSpace(text), want)
	}
	if onMonth(ctx) {
		return nil
	}

	err := wait.Until(ctx, wait.Budget{Iterations: maxMonthSteps}, func(ctx context.Context) bool {
		if err := m.click(ctx, "schedule_next_month"); err != nil {
			slog.DebugContext(ctx, "month pager click failed", "err", err)
		}
		if err := wait.Sleep(ctx, interval); err != nil {
			return false
		}
		return onMonth(ctx)
	})
	if err != nil {
		return fmt.Errorf("calendar never reached %s: %w", want, err)
	}
	return nil
}

func pollDialog(p types.Poll, interval time.Duration) dialog {
	return dialog{
		name:       "poll",
		viaOptions: true,
		open:       "poll_open",
		save:       "poll_save",
		cancel:     "poll_cancel",
		fill: func(ctx context.Context, m *Machine) error {
			if err := m.clickText(ctx, "poll_periods", p.Period.Label()); err != nil {
				return err
			}

			// the dialog starts with two inputs; each add appends one
			budget := wait.Budget{Interval: interval, Iterations: types.MaxPollQuestions}
			err := budget.Until(ctx, func(ctx context.Context) bool {
				inputs, _ := m.res.FindMany(ctx, "poll_questions")
				if len(inputs) >= len(p.Questions) {
					return true
				}
				if err := m.click(ctx, "poll_add_question"); err != nil {
					slog.DebugContext(ctx, "add question failed", "err", err)
				}
				return false
			})
			if err != nil {
				return fmt.Errorf("could not get %d question inputs: %w", len(p.Questions), err)
			}

			inputs, err := m.res.FindMany(ctx, "poll_questions")
			if err != nil {
				return err
			}
			for i, q := range p.Questions {
				if err := inputs[i].Clear(ctx); err != nil {
					return err
				}
				if err := inputs[i].SendKeys(ctx, q); err != nil {
					return fmt.Errorf("failed to type question %d: %w", i+1, err)
				}
			}
			return nil
		},
	}
}

func priceDialog(price float64) dialog {
	return dialog{
		name:   "price",
		open:   "price_open",
		save:   "price_save",
		cancel: "price_cancel",
		fill: func(ctx context.Context, m *Machine) error {
			return m.fill(ctx, "price_input", strconv.FormatFloat(price, 'f', -1, 64))
		},
	}
}
