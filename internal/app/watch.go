package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"acta-go/internal/model"
)

// TickReport is the outcome of one watch cycle.
type TickReport struct {
	At        time.Time
	Status    model.ConnectionStatus
	Today     int
	Refreshed int
	Generated int
	Archived  int
	Err       error
}

func (r TickReport) String() string {
	s := fmt.Sprintf("%s  %-9s  hoy=%d  actas=%d/%d  archivadas=%d",
		r.At.Format("15:04:05"), r.Status, r.Today, r.Generated, r.Refreshed, r.Archived)
	if r.Err != nil {
		s += "  error: " + r.Err.Error()
	}
	return s
}

// Watch runs Tick on the configured cron schedule until ctx is done. A
// cycle still running when the next one is due is skipped.
func (a *ActaApp) Watch(ctx context.Context, out io.Writer) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	logger := cronLogger{l: a.logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err = c.AddFunc(a.cfg.Watch.Schedule, func() {
		rep := a.Tick(ctx)
		fmt.Fprintln(out, rep)
	})
	if err != nil {
		return fmt.Errorf("invalid watch schedule %q: %w", a.cfg.Watch.Schedule, err)
	}
	if err := a.Persist(ctx); err != nil {
		return err
	}

	a.logger.Info("watch started", "schedule", a.cfg.Watch.Schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("watch stopped")
	return nil
}

// Tick probes the backend, reloads the agenda, refreshes the acta state
// of today's units that were worked on and archives new actas.
func (a *ActaApp) Tick(ctx context.Context) TickReport {
	rep := TickReport{At: time.Now()}

	rep.Status = a.store.CheckConnection(ctx)
	if rep.Status != model.ConnectionConnected {
		rep.Err = fmt.Errorf("backend unreachable")
		return rep
	}
	if _, ok := a.store.Session(); !ok {
		rep.Err = fmt.Errorf("no session")
		return rep
	}

	if err := a.store.FetchData(ctx); err != nil {
		rep.Err = err
		return rep
	}

	today := a.store.ScheduledToday()
	rep.Today = len(today)
	for _, u := range today {
		switch u.EffectiveProceso() {
		case model.ProcesoEnProceso, model.ProcesoRealizado:
		default:
			continue
		}
		if u.IsHandoverGenerated && u.HandoverURL != "" {
			continue
		}
		st, err := a.store.RefreshActaStatus(ctx, u)
		if err != nil {
			a.logger.Warn("acta status refresh failed", "unit", u.ID, "error", err)
			continue
		}
		rep.Refreshed++
		if st.Generated {
			rep.Generated++
		}
	}

	ar, err := a.archive.Run(ctx)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Archived = ar.Archived
	return rep
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
