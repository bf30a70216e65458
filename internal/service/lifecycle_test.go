package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

func TestFetchCreateResolve_RoundTrip(t *testing.T) {
	ctx := context.Background()
	date := civil.Date{Year: 2025, Month: time.January, Day: 15}
	// 19:30 local on the 15th, already the 16th in UTC.
	kickoff := time.Date(2025, 1, 16, 0, 30, 0, 0, time.UTC)

	provider := &fakeProvider{league: domain.LeagueNBA, days: map[civil.Date][]domain.Game{
		civil.DateOf(kickoff): {{
			GameID:    "14012",
			League:    domain.LeagueNBA,
			AwayTeam:  "Bulls",
			HomeTeam:  "Lakers",
			StartTime: kickoff,
			Status:    domain.GameScheduled,
		}},
	}}
	games := newMemGameStore()
	markets := &memMarketStore{}
	contract := newFakeContract()
	contracts := fakeRegistry{"vesta": contract}
	schedule := NewScheduleService(fakeProviders{domain.LeagueNBA: provider}, games, testLoc, testLogger())

	fetched, err := schedule.Fetch(ctx, domain.LeagueNBA, date)
	require.NoError(t, err)
	require.Len(t, fetched.Games, 1)

	stored, err := games.Get(ctx, domain.LeagueNBA, "14012")
	require.NoError(t, err)
	assert.Equal(t, date, stored.LocalDate)
	assert.Equal(t, "Bulls", stored.AwayTeam)
	assert.Equal(t, "Lakers", stored.HomeTeam)

	creator := NewMarketCreator(games, markets, &memRuleStore{}, &memAuditStore{}, contracts, testLogger())
	creator.now = func() time.Time { return kickoff.Add(-90 * time.Minute) }
	created, err := creator.CreateMarkets(ctx, "vesta", domain.LeagueNBA, date)
	require.NoError(t, err)
	require.Len(t, created.Items, 1)
	require.Equal(t, domain.ItemCreated, created.Items[0].Status)

	require.Len(t, markets.mappings, 1)
	m := markets.mappings[0]
	assert.Equal(t, "14012", m.GameID)
	assert.Equal(t, []string{"Bulls", "Lakers"}, m.Options)
	assert.Equal(t, "NBA: Bulls vs Lakers (2025-01-15) - who will win?", m.Question)
	assert.Equal(t, date, m.EndDate(testLoc))

	final := provider.days[civil.DateOf(kickoff)][0]
	final.Status = domain.GameFinished
	final.AwayScore = intp(98)
	final.HomeScore = intp(104)
	provider.days[civil.DateOf(kickoff)] = []domain.Game{final}

	resolver := NewMarketResolver(games, markets, &memAuditStore{}, contracts, schedule, testLoc, testLogger())
	resolver.now = func() time.Time { return kickoff.Add(8 * time.Hour) }
	resolved, err := resolver.ResolveMarkets(ctx, "vesta", date, "")
	require.NoError(t, err)

	require.Len(t, resolved.Items, 1)
	item := resolved.Items[0]
	assert.Equal(t, domain.ItemResolved, item.Status)
	require.NotNil(t, item.Outcome)
	assert.Equal(t, 1, *item.Outcome)
	assert.Equal(t, []resolveCall{{MarketID: m.MarketID, Outcome: 1}}, contract.resolved)

	require.Len(t, markets.resolutions, 1)
	assert.Equal(t, 104, markets.resolutions[0].HomeScore)
	assert.Equal(t, 98, markets.resolutions[0].AwayScore)

	refreshed, err := games.Get(ctx, domain.LeagueNBA, "14012")
	require.NoError(t, err)
	assert.Equal(t, domain.GameFinished, refreshed.Status)
	assert.Equal(t, date, refreshed.LocalDate)
	assert.Equal(t, "Lakers", refreshed.HomeTeam)
}
