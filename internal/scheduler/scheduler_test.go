package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

var testLoc = time.FixedZone("EST", -5*3600)

func testLogger() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

type call struct {
	room   domain.Room
	league domain.League
	date   civil.Date
}

type fakeServices struct {
	mu        sync.Mutex
	fetched   []call
	created   []call
	resolved  []call
	claimed   []domain.Room
	fetchErr  map[domain.League]error
	createRep domain.CreateReport
}

func (f *fakeServices) Fetch(_ context.Context, league domain.League, date civil.Date) (domain.FetchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, call{league: league, date: date})
	return domain.FetchReport{League: league, Date: date}, f.fetchErr[league]
}

func (f *fakeServices) CreateMarkets(_ context.Context, room domain.Room, league domain.League, date civil.Date) (domain.CreateReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, call{room: room, league: league, date: date})
	rep := f.createRep
	rep.Room, rep.League, rep.Date = room, league, date
	return rep, nil
}

func (f *fakeServices) ResolveMarkets(_ context.Context, room domain.Room, date civil.Date, league domain.League) (domain.ResolveReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, call{room: room, league: league, date: date})
	return domain.ResolveReport{Room: room, Date: date}, nil
}

func (f *fakeServices) Claim(_ context.Context, room domain.Room, _ int64) (domain.ClaimReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimed = append(f.claimed, room)
	return domain.ClaimReport{Room: room}, nil
}

type recordReporter struct {
	creates int
	errs    []string
}

func (r *recordReporter) CreateRun(context.Context, domain.CreateReport) error {
	r.creates++
	return nil
}
func (r *recordReporter) ResolveRun(context.Context, domain.ResolveReport) error { return nil }
func (r *recordReporter) ClaimRun(context.Context, domain.ClaimReport) error     { return nil }
func (r *recordReporter) Error(_ context.Context, job string, _ error) error {
	r.errs = append(r.errs, job)
	return nil
}

func newTestJobs(f *fakeServices, leagues []domain.League, rooms []domain.Room) *Jobs {
	j := NewJobs(f, f, f, f, leagues, rooms, testLoc, testLogger())
	// 2025-01-15 02:00 UTC is still the 14th in EST.
	j.now = func() time.Time { return time.Date(2025, time.January, 15, 2, 0, 0, 0, time.UTC) }
	return j
}

func TestCreateUpcomingTargetsNextLocalDay(t *testing.T) {
	f := &fakeServices{createRep: domain.CreateReport{Items: []domain.ItemResult{{Status: domain.ItemCreated}}}}
	rep := &recordReporter{}
	j := newTestJobs(f, []domain.League{domain.LeagueNBA}, []domain.Room{"vesta", "usdc"})
	j.SetReporter(rep)

	require.NoError(t, j.CreateUpcoming(context.Background()))

	want := civil.Date{Year: 2025, Month: time.January, Day: 15}
	require.Len(t, f.fetched, 1)
	assert.Equal(t, want, f.fetched[0].date)
	require.Len(t, f.created, 2)
	assert.Equal(t, domain.Room("vesta"), f.created[0].room)
	assert.Equal(t, domain.Room("usdc"), f.created[1].room)
	assert.Equal(t, 2, rep.creates)
}

func TestCreateUpcomingSkipsLeagueWhenFetchFails(t *testing.T) {
	f := &fakeServices{fetchErr: map[domain.League]error{domain.LeagueNFL: errors.New("provider down")}}
	rep := &recordReporter{}
	j := newTestJobs(f, []domain.League{domain.LeagueNFL, domain.LeagueEPL}, []domain.Room{"vesta"})
	j.SetReporter(rep)

	err := j.CreateUpcoming(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")

	require.Len(t, f.created, 1)
	assert.Equal(t, domain.LeagueEPL, f.created[0].league)
	assert.Equal(t, []string{"fetch NFL"}, rep.errs)
	assert.Zero(t, rep.creates, "empty create runs are not reported")
}

func TestResolveRecentCoversYesterdayAndToday(t *testing.T) {
	f := &fakeServices{}
	j := newTestJobs(f, nil, []domain.Room{"vesta"})

	require.NoError(t, j.ResolveRecent(context.Background()))

	require.Len(t, f.resolved, 2)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 13}, f.resolved[0].date)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.January, Day: 14}, f.resolved[1].date)
	assert.Equal(t, domain.League(""), f.resolved[0].league)
}

func TestClaimAllVisitsEveryRoom(t *testing.T) {
	f := &fakeServices{}
	j := newTestJobs(f, nil, []domain.Room{"vesta", "usdc"})

	require.NoError(t, j.ClaimAll(context.Background()))
	assert.Equal(t, []domain.Room{"vesta", "usdc"}, f.claimed)
}

func TestRunnerRejectsBadSpec(t *testing.T) {
	r := NewRunner(testLoc, testLogger())
	err := r.Add("bad", "not a cron spec", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Zero(t, r.Jobs())

	require.NoError(t, r.Add("off", "", func(context.Context) error { return nil }))
	assert.Zero(t, r.Jobs())
}

func TestRunnerRunsJobsUntilCancelled(t *testing.T) {
	r := NewRunner(testLoc, testLogger())
	ran := make(chan struct{}, 1)
	require.NoError(t, r.Add("tick", "* * * * * *", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop")
	}
}
