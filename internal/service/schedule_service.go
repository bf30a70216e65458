package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/vmarket/vmarket/internal/domain"
)

// ProviderSource selects the schedule provider for a league.
type ProviderSource interface {
	Provider(league domain.League) (domain.ScheduleProvider, error)
}

// ScheduleExporter writes a snapshot of a fetched schedule.
type ScheduleExporter interface {
	ExportSchedule(ctx context.Context, league domain.League, date civil.Date, games []domain.Game) error
}

// ScheduleService fetches, normalizes to local dates, and persists games.
type ScheduleService struct {
	providers ProviderSource
	games     domain.GameStore
	exporter  ScheduleExporter
	loc       *time.Location
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduleService creates a ScheduleService whose local dates are
// computed in loc.
func NewScheduleService(
	providers ProviderSource,
	games domain.GameStore,
	loc *time.Location,
	logger *slog.Logger,
) *ScheduleService {
	return &ScheduleService{
		providers: providers,
		games:     games,
		loc:       loc,
		logger:    logger.With(slog.String("component", "schedule_service")),
		now:       time.Now,
	}
}

// SetExporter enables schedule snapshots after each fetch.
func (s *ScheduleService) SetExporter(e ScheduleExporter) {
	s.exporter = e
}

// Location returns the timezone local dates are computed in.
func (s *ScheduleService) Location() *time.Location {
	return s.loc
}

// Fetch loads league's games for the local date and upserts them. The
// provider is queried for the day before, the day itself and the day after,
// since kickoffs near midnight fall on a different UTC date. A failed day is
// logged and skipped; the run fails only when every day fails.
func (s *ScheduleService) Fetch(ctx context.Context, league domain.League, date civil.Date) (domain.FetchReport, error) {
	report := domain.FetchReport{
		RunID:     uuid.NewString(),
		League:    league,
		Date:      date,
		StartedAt: s.now().UTC(),
	}

	games, failed, err := s.collect(ctx, league, date)
	report.FailedDays = failed
	if err != nil {
		report.FinishedAt = s.now().UTC()
		return report, err
	}

	if len(games) > 0 {
		if err := s.games.UpsertBatch(ctx, games); err != nil {
			report.FinishedAt = s.now().UTC()
			return report, fmt.Errorf("schedule_service: upsert %s %s: %w", league, date, err)
		}
	}

	if s.exporter != nil {
		if err := s.exporter.ExportSchedule(ctx, league, date, games); err != nil {
			s.logger.WarnContext(ctx, "schedule export failed",
				slog.String("league", string(league)),
				slog.String("date", date.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	report.Games = games
	report.FinishedAt = s.now().UTC()
	s.logger.InfoContext(ctx, "schedule fetched",
		slog.String("run_id", report.RunID),
		slog.String("league", string(league)),
		slog.String("date", date.String()),
		slog.Int("games", len(games)),
		slog.Int("failed_days", len(failed)),
	)
	return report, nil
}

func (s *ScheduleService) collect(ctx context.Context, league domain.League, date civil.Date) ([]domain.Game, []string, error) {
	provider, err := s.providers.Provider(league)
	if err != nil {
		return nil, nil, fmt.Errorf("schedule_service: %w", err)
	}

	var (
		games  []domain.Game
		failed []string
		seen   = make(map[string]bool)
		now    = s.now().UTC()
	)
	days := []civil.Date{date.AddDays(-1), date, date.AddDays(1)}
	for _, day := range days {
		fetched, err := provider.FetchGames(ctx, day)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, fmt.Errorf("schedule_service: fetch %s %s: %w", league, day, ctx.Err())
			}
			s.logger.WarnContext(ctx, "schedule day fetch failed, skipping",
				slog.String("league", string(league)),
				slog.String("day", day.String()),
				slog.String("error", err.Error()),
			)
			failed = append(failed, day.String())
			continue
		}

		for _, g := range fetched {
			if g.League != league || seen[g.GameID] {
				continue
			}
			g.LocalDate = civil.DateOf(g.StartTime.In(s.loc))
			if g.LocalDate != date {
				continue
			}
			seen[g.GameID] = true
			g.UpdatedAt = now
			games = append(games, g)
		}
	}

	if len(failed) == len(days) {
		return nil, failed, fmt.Errorf("schedule_service: fetch %s %s: all days failed: %w",
			league, date, domain.ErrServiceUnavailable)
	}
	return games, failed, nil
}
