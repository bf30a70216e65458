package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

type recordingExporter struct {
	paths []string
	games int
}

func (e *recordingExporter) ExportSchedule(_ context.Context, league domain.League, date civil.Date, games []domain.Game) error {
	e.paths = append(e.paths, string(league)+"/"+date.String())
	e.games += len(games)
	return nil
}

func nbaGame(id, away, home string, start time.Time) domain.Game {
	return domain.Game{
		GameID:    id,
		League:    domain.LeagueNBA,
		AwayTeam:  away,
		HomeTeam:  home,
		StartTime: start,
		Status:    domain.GameScheduled,
	}
}

func TestScheduleFetch_FiltersByLocalDate(t *testing.T) {
	target := civil.Date{Year: 2025, Month: time.January, Day: 15}
	late := nbaGame("1", "Bulls", "Lakers", time.Date(2025, 1, 16, 3, 30, 0, 0, time.UTC))
	early := nbaGame("2", "Heat", "Knicks", time.Date(2025, 1, 15, 3, 0, 0, 0, time.UTC))
	afternoon := nbaGame("3", "Suns", "Celtics", time.Date(2025, 1, 15, 18, 0, 0, 0, time.UTC))
	other := afternoon
	other.GameID = "4"
	other.League = domain.LeagueNFL

	p := &fakeProvider{
		league: domain.LeagueNBA,
		days: map[civil.Date][]domain.Game{
			target:             {early, afternoon, other},
			target.AddDays(1):  {late, afternoon},
			target.AddDays(-1): {},
		},
	}
	games := newMemGameStore()
	exp := &recordingExporter{}
	svc := NewScheduleService(fakeProviders{domain.LeagueNBA: p}, games, testLoc, testLogger())
	svc.SetExporter(exp)

	report, err := svc.Fetch(context.Background(), domain.LeagueNBA, target)
	require.NoError(t, err)

	assert.Equal(t, []civil.Date{target.AddDays(-1), target, target.AddDays(1)}, p.calls)
	require.Len(t, report.Games, 2)
	ids := []string{report.Games[0].GameID, report.Games[1].GameID}
	assert.ElementsMatch(t, []string{"1", "3"}, ids)
	for _, g := range report.Games {
		assert.Equal(t, target, g.LocalDate)
	}
	assert.Empty(t, report.FailedDays)
	assert.Len(t, games.games, 2)
	assert.Equal(t, []string{"NBA/2025-01-15"}, exp.paths)
	assert.Equal(t, 2, exp.games)
}

func TestScheduleFetch_SkipsFailedDay(t *testing.T) {
	target := civil.Date{Year: 2025, Month: time.January, Day: 15}
	g := nbaGame("1", "Bulls", "Lakers", time.Date(2025, 1, 16, 0, 30, 0, 0, time.UTC))
	p := &fakeProvider{
		league: domain.LeagueNBA,
		days:   map[civil.Date][]domain.Game{target.AddDays(1): {g}},
		errs:   map[civil.Date]error{target: errors.New("502 bad gateway")},
	}
	svc := NewScheduleService(fakeProviders{domain.LeagueNBA: p}, newMemGameStore(), testLoc, testLogger())

	report, err := svc.Fetch(context.Background(), domain.LeagueNBA, target)
	require.NoError(t, err)
	assert.Len(t, p.calls, 3)
	assert.Equal(t, []string{"2025-01-15"}, report.FailedDays)
	require.Len(t, report.Games, 1)
	assert.Equal(t, "Lakers", report.Games[0].HomeTeam)
}

func TestScheduleFetch_AllDaysFailed(t *testing.T) {
	target := civil.Date{Year: 2025, Month: time.January, Day: 15}
	boom := errors.New("timeout")
	p := &fakeProvider{
		league: domain.LeagueNBA,
		errs: map[civil.Date]error{
			target.AddDays(-1): boom, target: boom, target.AddDays(1): boom,
		},
	}
	games := newMemGameStore()
	svc := NewScheduleService(fakeProviders{domain.LeagueNBA: p}, games, testLoc, testLogger())

	report, err := svc.Fetch(context.Background(), domain.LeagueNBA, target)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Len(t, report.FailedDays, 3)
	assert.Zero(t, games.upserts)
}

func TestScheduleFetch_UnknownLeague(t *testing.T) {
	svc := NewScheduleService(fakeProviders{}, newMemGameStore(), testLoc, testLogger())
	_, err := svc.Fetch(context.Background(), domain.LeagueCL, civil.Date{Year: 2025, Month: 1, Day: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownLeague)
}
