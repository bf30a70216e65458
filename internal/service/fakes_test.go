package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var testLoc = time.FixedZone("EST", -5*3600)

func intp(v int) *int { return &v }

// --- contract ---------------------------------------------------------------

type createCall struct {
	Question string
	Options  []string
	Duration int64
}

type resolveCall struct {
	MarketID int64
	Outcome  int
}

type fakeContract struct {
	mu         sync.Mutex
	nextID     int64
	createErr  error
	created    []createCall
	infos      map[int64]domain.MarketInfo
	infoErr    error
	infoCalls  int
	resolveErr error
	resolved   []resolveCall
	roles      map[domain.Role]map[string]bool
	roleErr    error
	shares     map[int64][]*big.Int
	claims     []int64
	grants     []string
	revokes    []string
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		nextID: 1,
		infos:  map[int64]domain.MarketInfo{},
		roles:  map[domain.Role]map[string]bool{},
		shares: map[int64][]*big.Int{},
	}
}

func (f *fakeContract) Address() string { return "0x000000000000000000000000000000000000c0de" }

func (f *fakeContract) CreateMarket(_ context.Context, q string, opts []string, d int64) (domain.CreatedMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.CreatedMarket{}, f.createErr
	}
	f.created = append(f.created, createCall{Question: q, Options: opts, Duration: d})
	id := f.nextID
	f.nextID++
	f.infos[id] = domain.MarketInfo{MarketID: id, Question: q, Options: opts}
	return domain.CreatedMarket{MarketID: id, TxHash: fmt.Sprintf("0xcreate%d", id)}, nil
}

func (f *fakeContract) ResolveMarket(_ context.Context, id int64, outcome int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	f.resolved = append(f.resolved, resolveCall{MarketID: id, Outcome: outcome})
	info := f.infos[id]
	info.Resolved = true
	info.Outcome = int64(outcome)
	f.infos[id] = info
	return fmt.Sprintf("0xresolve%d", id), nil
}

func (f *fakeContract) GetMarketInfo(_ context.Context, id int64) (domain.MarketInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls++
	if f.infoErr != nil {
		return domain.MarketInfo{}, f.infoErr
	}
	info, ok := f.infos[id]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (f *fakeContract) GetSharesBalance(_ context.Context, id int64, _ string) ([]*big.Int, error) {
	return f.shares[id], nil
}

func (f *fakeContract) ClaimWinnings(_ context.Context, id int64) (string, error) {
	f.claims = append(f.claims, id)
	return fmt.Sprintf("0xclaim%d", id), nil
}

func (f *fakeContract) HasRole(_ context.Context, role domain.Role, account string) (bool, error) {
	if f.roleErr != nil {
		return false, f.roleErr
	}
	return f.roles[role][account], nil
}

func (f *fakeContract) GrantRole(_ context.Context, role domain.Role, account string) (string, error) {
	f.grants = append(f.grants, string(role)+":"+account)
	return "0xgrant", nil
}

func (f *fakeContract) RevokeRole(_ context.Context, role domain.Role, account string) (string, error) {
	f.revokes = append(f.revokes, string(role)+":"+account)
	return "0xrevoke", nil
}

type fakeRegistry map[domain.Room]*fakeContract

func (r fakeRegistry) Contract(room domain.Room) (domain.MarketContract, error) {
	c, ok := r[room]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRoom, room)
	}
	return c, nil
}

func (r fakeRegistry) Rooms() []domain.Room {
	out := make([]domain.Room, 0, len(r))
	for room := range r {
		out = append(out, room)
	}
	return out
}

// --- stores -----------------------------------------------------------------

type memGameStore struct {
	games   map[string]domain.Game
	upserts int
}

func newMemGameStore(games ...domain.Game) *memGameStore {
	s := &memGameStore{games: map[string]domain.Game{}}
	for _, g := range games {
		s.games[g.Key()] = g
	}
	return s
}

func (s *memGameStore) UpsertBatch(_ context.Context, games []domain.Game) error {
	s.upserts++
	for _, g := range games {
		s.games[g.Key()] = g
	}
	return nil
}

func (s *memGameStore) Get(_ context.Context, league domain.League, id string) (domain.Game, error) {
	g, ok := s.games[domain.Game{League: league, GameID: id}.Key()]
	if !ok {
		return domain.Game{}, domain.ErrNotFound
	}
	return g, nil
}

func (s *memGameStore) ListByDate(_ context.Context, league domain.League, date civil.Date) ([]domain.Game, error) {
	var out []domain.Game
	for _, g := range s.games {
		if g.League == league && g.LocalDate == date {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type memMarketStore struct {
	mappings    []domain.MarketMapping
	resolutions []domain.Resolution
}

func (s *memMarketStore) Create(_ context.Context, m domain.MarketMapping) error {
	for _, e := range s.mappings {
		if e.Room == m.Room && (e.MarketID == m.MarketID || (e.League == m.League && e.GameID == m.GameID)) {
			return domain.ErrAlreadyExists
		}
	}
	s.mappings = append(s.mappings, m)
	return nil
}

func (s *memMarketStore) ExistsForGame(_ context.Context, room domain.Room, league domain.League, id string) (bool, error) {
	for _, e := range s.mappings {
		if e.Room == room && e.League == league && e.GameID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *memMarketStore) Get(_ context.Context, room domain.Room, id int64) (domain.MarketMapping, error) {
	for _, e := range s.mappings {
		if e.Room == room && e.MarketID == id {
			return e, nil
		}
	}
	return domain.MarketMapping{}, domain.ErrNotFound
}

func (s *memMarketStore) List(_ context.Context, f domain.MarketFilter) ([]domain.MarketMapping, error) {
	var out []domain.MarketMapping
	for _, e := range s.mappings {
		if (f.Room == "" || e.Room == f.Room) && (f.League == "" || e.League == f.League) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memMarketStore) ListByEndRange(_ context.Context, room domain.Room, from, to int64) ([]domain.MarketMapping, error) {
	var out []domain.MarketMapping
	for _, e := range s.mappings {
		if e.Room == room && e.EndTime >= from && e.EndTime < to {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime < out[j].EndTime })
	return out, nil
}

func (s *memMarketStore) RecordResolution(_ context.Context, r domain.Resolution) error {
	s.resolutions = append(s.resolutions, r)
	return nil
}

type memRuleStore struct{ rules []domain.Rule }

func (s *memRuleStore) Append(_ context.Context, r domain.Rule) (int64, error) {
	r.ID = int64(len(s.rules) + 1)
	s.rules = append(s.rules, r)
	return r.ID, nil
}

func (s *memRuleStore) List(_ context.Context, room domain.Room, _ domain.ListOpts) ([]domain.Rule, error) {
	var out []domain.Rule
	for _, r := range s.rules {
		if r.Room == room {
			out = append(out, r)
		}
	}
	return out, nil
}

type memAuditStore struct{ events []string }

func (s *memAuditStore) Log(_ context.Context, event string, _ map[string]any) error {
	s.events = append(s.events, event)
	return nil
}

func (s *memAuditStore) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

// --- provider, cache, bus, locks -------------------------------------------

type fakeProvider struct {
	league domain.League
	days   map[civil.Date][]domain.Game
	errs   map[civil.Date]error
	calls  []civil.Date
}

func (p *fakeProvider) League() domain.League { return p.league }

func (p *fakeProvider) FetchGames(_ context.Context, d civil.Date) ([]domain.Game, error) {
	p.calls = append(p.calls, d)
	if err := p.errs[d]; err != nil {
		return nil, err
	}
	return p.days[d], nil
}

type fakeProviders map[domain.League]domain.ScheduleProvider

func (f fakeProviders) Provider(l domain.League) (domain.ScheduleProvider, error) {
	p, ok := f[l]
	if !ok {
		return nil, domain.ErrUnknownLeague
	}
	return p, nil
}

type fakeLocks struct {
	held map[string]bool
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() { delete(l.held, key) }, nil
}

type memBus struct{ published [][]byte }

func (b *memBus) Publish(_ context.Context, _ string, p []byte) error {
	b.published = append(b.published, p)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

type memInfoCache struct {
	infos       map[string]domain.MarketInfo
	invalidated []int64
}

func newMemInfoCache() *memInfoCache { return &memInfoCache{infos: map[string]domain.MarketInfo{}} }

func cacheKey(room domain.Room, id int64) string { return fmt.Sprintf("%s:%d", room, id) }

func (c *memInfoCache) Set(_ context.Context, room domain.Room, info domain.MarketInfo) error {
	c.infos[cacheKey(room, info.MarketID)] = info
	return nil
}

func (c *memInfoCache) Get(_ context.Context, room domain.Room, id int64) (domain.MarketInfo, error) {
	info, ok := c.infos[cacheKey(room, id)]
	if !ok {
		return domain.MarketInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (c *memInfoCache) Invalidate(_ context.Context, room domain.Room, id int64) error {
	delete(c.infos, cacheKey(room, id))
	c.invalidated = append(c.invalidated, id)
	return nil
}
