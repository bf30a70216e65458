package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/domain"
)

// ScheduleFetcher refreshes one league's games for a local date.
type ScheduleFetcher interface {
	Fetch(ctx context.Context, league domain.League, date civil.Date) (domain.FetchReport, error)
}

// MarketCreator creates markets for one league's games on a local date.
type MarketCreator interface {
	CreateMarkets(ctx context.Context, room domain.Room, league domain.League, date civil.Date) (domain.CreateReport, error)
}

// MarketResolver resolves ended markets for a local date.
type MarketResolver interface {
	ResolveMarkets(ctx context.Context, room domain.Room, date civil.Date, league domain.League) (domain.ResolveReport, error)
}

// WinningsClaimer claims payouts for resolved markets.
type WinningsClaimer interface {
	Claim(ctx context.Context, room domain.Room, marketID int64) (domain.ClaimReport, error)
}

// Reporter receives run summaries and job failures.
type Reporter interface {
	CreateRun(ctx context.Context, r domain.CreateReport) error
	ResolveRun(ctx context.Context, r domain.ResolveReport) error
	ClaimRun(ctx context.Context, r domain.ClaimReport) error
	Error(ctx context.Context, job string, err error) error
}

// Jobs holds the recurring job bodies.
type Jobs struct {
	schedule ScheduleFetcher
	creator  MarketCreator
	resolver MarketResolver
	claimer  WinningsClaimer
	reporter Reporter
	leagues  []domain.League
	rooms    []domain.Room
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
}

// NewJobs creates Jobs over the given leagues and rooms.
func NewJobs(
	schedule ScheduleFetcher,
	creator MarketCreator,
	resolver MarketResolver,
	claimer WinningsClaimer,
	leagues []domain.League,
	rooms []domain.Room,
	loc *time.Location,
	logger *slog.Logger,
) *Jobs {
	return &Jobs{
		schedule: schedule,
		creator:  creator,
		resolver: resolver,
		claimer:  claimer,
		leagues:  leagues,
		rooms:    rooms,
		loc:      loc,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "jobs")),
	}
}

// SetReporter sets where run summaries go.
func (j *Jobs) SetReporter(r Reporter) { j.reporter = r }

// Register adds every job with a non-empty spec to runner.
func (j *Jobs) Register(r *Runner, createSpec, resolveSpec, claimSpec string) error {
	if err := r.Add("create_upcoming", createSpec, j.CreateUpcoming); err != nil {
		return err
	}
	if err := r.Add("resolve_recent", resolveSpec, j.ResolveRecent); err != nil {
		return err
	}
	return r.Add("claim_all", claimSpec, j.ClaimAll)
}

func (j *Jobs) today() civil.Date {
	return civil.DateOf(j.now().In(j.loc))
}

// CreateUpcoming fetches tomorrow's games for every league and creates their
// markets in every room. A league whose fetch fails is skipped.
func (j *Jobs) CreateUpcoming(ctx context.Context) error {
	date := j.today().AddDays(1)
	var errs []error

	for _, league := range j.leagues {
		if _, err := j.schedule.Fetch(ctx, league, date); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, j.fail(ctx, "fetch "+string(league), err))
			continue
		}
		for _, room := range j.rooms {
			rep, err := j.creator.CreateMarkets(ctx, room, league, date)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errs = append(errs, j.fail(ctx, fmt.Sprintf("create %s %s", room, league), err))
				continue
			}
			j.logger.InfoContext(ctx, "create run finished",
				slog.String("room", string(room)),
				slog.String("league", string(league)),
				slog.String("date", date.String()),
				slog.Any("tally", rep.Tally()),
			)
			if j.reporter != nil && len(rep.Items) > 0 {
				j.report(ctx, j.reporter.CreateRun(ctx, rep))
			}
		}
	}
	return errors.Join(errs...)
}

// ResolveRecent resolves markets that ended yesterday or today in every room.
func (j *Jobs) ResolveRecent(ctx context.Context) error {
	today := j.today()
	var errs []error

	for _, room := range j.rooms {
		for _, date := range []civil.Date{today.AddDays(-1), today} {
			rep, err := j.resolver.ResolveMarkets(ctx, room, date, "")
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errs = append(errs, j.fail(ctx, fmt.Sprintf("resolve %s %s", room, date), err))
				continue
			}
			t := rep.Tally()
			j.logger.InfoContext(ctx, "resolve run finished",
				slog.String("room", string(room)),
				slog.String("date", date.String()),
				slog.Any("tally", t),
			)
			// Most runs find nothing to do; only report runs that acted or failed.
			if j.reporter != nil && t[domain.ItemResolved]+t[domain.ItemFailed] > 0 {
				j.report(ctx, j.reporter.ResolveRun(ctx, rep))
			}
		}
	}
	return errors.Join(errs...)
}

// ClaimAll claims winnings on every resolved market in every room.
func (j *Jobs) ClaimAll(ctx context.Context) error {
	var errs []error
	for _, room := range j.rooms {
		rep, err := j.claimer.Claim(ctx, room, 0)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, j.fail(ctx, "claim "+string(room), err))
			continue
		}
		t := rep.Tally()
		if j.reporter != nil && t[domain.ItemClaimed]+t[domain.ItemFailed] > 0 {
			j.report(ctx, j.reporter.ClaimRun(ctx, rep))
		}
	}
	return errors.Join(errs...)
}

func (j *Jobs) fail(ctx context.Context, job string, err error) error {
	err = fmt.Errorf("%s: %w", job, err)
	j.logger.ErrorContext(ctx, "job step failed", slog.String("error", err.Error()))
	if j.reporter != nil {
		j.report(ctx, j.reporter.Error(ctx, job, err))
	}
	return err
}

func (j *Jobs) report(ctx context.Context, err error) {
	if err != nil {
		j.logger.WarnContext(ctx, "report delivery failed", slog.String("error", err.Error()))
	}
}
