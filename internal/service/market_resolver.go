package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"

	"github.com/vmarket/vmarket/internal/domain"
	"github.com/vmarket/vmarket/internal/resolution"
)

const defaultResolveLockTTL = 5 * time.Minute

// GameRefresher re-fetches a league's games for a local date.
type GameRefresher interface {
	Fetch(ctx context.Context, league domain.League, date civil.Date) (domain.FetchReport, error)
}

// MarketResolver settles mapped markets whose games have finished.
type MarketResolver struct {
	games     domain.GameStore
	markets   domain.MarketStore
	audit     domain.AuditStore
	contracts domain.ContractRegistry
	refresher GameRefresher
	loc       *time.Location
	locks     domain.LockManager
	lockTTL   time.Duration
	cache     domain.MarketInfoCache
	bus       domain.EventBus
	logger    *slog.Logger
	now       func() time.Time
}

// NewMarketResolver creates a MarketResolver. End dates are computed in loc.
func NewMarketResolver(
	games domain.GameStore,
	markets domain.MarketStore,
	audit domain.AuditStore,
	contracts domain.ContractRegistry,
	refresher GameRefresher,
	loc *time.Location,
	logger *slog.Logger,
) *MarketResolver {
	return &MarketResolver{
		games:     games,
		markets:   markets,
		audit:     audit,
		contracts: contracts,
		refresher: refresher,
		loc:       loc,
		lockTTL:   defaultResolveLockTTL,
		logger:    logger.With(slog.String("component", "market_resolver")),
		now:       time.Now,
	}
}

// SetLockManager guards each market with a distributed lock.
func (r *MarketResolver) SetLockManager(l domain.LockManager, ttl time.Duration) {
	r.locks = l
	if ttl > 0 {
		r.lockTTL = ttl
	}
}

// SetMarketInfoCache enables invalidation of cached market info on resolve.
func (r *MarketResolver) SetMarketInfoCache(c domain.MarketInfoCache) { r.cache = c }

// SetEventBus enables market_resolved events.
func (r *MarketResolver) SetEventBus(b domain.EventBus) { r.bus = b }

// ResolveMarkets resolves room's markets whose local end date is date. An
// empty league means every league. Markets already resolved on-chain are
// never resolved again.
func (r *MarketResolver) ResolveMarkets(ctx context.Context, room domain.Room, date civil.Date, league domain.League) (domain.ResolveReport, error) {
	report := domain.ResolveReport{
		RunID:     uuid.NewString(),
		Room:      room,
		League:    league,
		Date:      date,
		StartedAt: r.now().UTC(),
	}

	contract, err := r.contracts.Contract(room)
	if err != nil {
		return report, fmt.Errorf("market_resolver: %w", err)
	}

	from := date.In(r.loc).Unix()
	to := date.AddDays(1).In(r.loc).Unix()
	mappings, err := r.markets.ListByEndRange(ctx, room, from, to)
	if err != nil {
		return report, fmt.Errorf("market_resolver: list markets %s %s: %w", room, date, err)
	}

	logger := r.logger.With(
		slog.String("run_id", report.RunID),
		slog.String("room", string(room)),
	)
	fresh := make(map[domain.League]map[string]domain.Game)

	for _, m := range mappings {
		if league != "" && m.League != league {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		report.Items = append(report.Items, r.resolveOne(ctx, logger, contract, m, date, fresh))
	}

	report.FinishedAt = r.now().UTC()
	t := report.Tally()
	logger.InfoContext(ctx, "resolve run finished",
		slog.String("date", date.String()),
		slog.Int("markets", len(report.Items)),
		slog.Int("resolved", t[domain.ItemResolved]),
		slog.Int("skipped", t[domain.ItemSkipped]),
		slog.Int("failed", t[domain.ItemFailed]),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("market_resolver: %w", err)
	}
	return report, nil
}

func (r *MarketResolver) resolveOne(
	ctx context.Context,
	logger *slog.Logger,
	contract domain.MarketContract,
	m domain.MarketMapping,
	date civil.Date,
	fresh map[domain.League]map[string]domain.Game,
) domain.ItemResult {
	item := domain.ItemResult{League: m.League, GameID: m.GameID, MarketID: m.MarketID}
	logger = logger.With(
		slog.Int64("market_id", m.MarketID),
		slog.String("league", string(m.League)),
		slog.String("game_id", m.GameID),
	)

	skip := func(reason string) domain.ItemResult {
		item.Status = domain.ItemSkipped
		item.Reason = reason
		logger.InfoContext(ctx, "market skipped", slog.String("reason", reason))
		return item
	}
	fail := func(reason string, err error) domain.ItemResult {
		item.Status = domain.ItemFailed
		item.Reason = fmt.Sprintf("%s: %v", reason, err)
		logger.ErrorContext(ctx, "market resolution failed",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return item
	}

	if m.EndTime > r.now().Unix() {
		return skip("market has not ended")
	}

	info, err := contract.GetMarketInfo(ctx, m.MarketID)
	if err != nil {
		return fail("get market info", err)
	}
	if info.Resolved {
		return skip("already resolved on-chain")
	}

	g, err := r.game(ctx, logger, m, date, fresh)
	if err != nil {
		return fail("load game", err)
	}

	optionCount := len(info.Options)
	if optionCount == 0 {
		optionCount = len(m.Options)
	}
	outcome, err := resolution.OutcomeForGame(g, optionCount)
	switch {
	case errors.Is(err, domain.ErrGameNotFinished):
		return skip("game status " + string(g.Status))
	case errors.Is(err, domain.ErrMissingScore):
		return skip("final score missing")
	case err != nil:
		return fail("derive outcome", err)
	}
	item.Outcome = &outcome

	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, fmt.Sprintf("resolve:%s:%d", m.Room, m.MarketID), r.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			return skip("resolution in progress elsewhere")
		}
		if err != nil {
			return fail("acquire lock", err)
		}
		defer unlock()

		// Another holder may have resolved it between the first read and the lock.
		info, err = contract.GetMarketInfo(ctx, m.MarketID)
		if err != nil {
			return fail("get market info", err)
		}
		if info.Resolved {
			return skip("already resolved on-chain")
		}
	}

	txHash, err := contract.ResolveMarket(ctx, m.MarketID, outcome)
	if err != nil {
		return fail("resolve market", err)
	}
	item.TxHash = txHash
	resolvedAt := r.now().UTC()

	if err := r.markets.RecordResolution(ctx, domain.Resolution{
		Room:       m.Room,
		MarketID:   m.MarketID,
		Outcome:    outcome,
		HomeScore:  *g.HomeScore,
		AwayScore:  *g.AwayScore,
		TxHash:     txHash,
		ResolvedAt: resolvedAt,
	}); err != nil {
		logger.WarnContext(ctx, "record resolution failed", slog.String("error", err.Error()))
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, m.Room, m.MarketID); err != nil {
			logger.WarnContext(ctx, "market info cache invalidate failed", slog.String("error", err.Error()))
		}
	}

	audit(ctx, r.audit, logger, "market_resolved", map[string]any{
		"room":       string(m.Room),
		"market_id":  m.MarketID,
		"league":     string(m.League),
		"game_id":    m.GameID,
		"outcome":    outcome,
		"home_score": *g.HomeScore,
		"away_score": *g.AwayScore,
		"tx_hash":    txHash,
	})
	publishEvent(ctx, r.bus, logger, domain.MarketEvent{
		Type:      domain.EventMarketResolved,
		Room:      m.Room,
		MarketID:  m.MarketID,
		League:    m.League,
		GameID:    m.GameID,
		Question:  m.Question,
		Outcome:   &outcome,
		TxHash:    txHash,
		Timestamp: resolvedAt,
	})

	item.Status = domain.ItemResolved
	logger.InfoContext(ctx, "market resolved",
		slog.Int("outcome", outcome),
		slog.String("tx_hash", txHash),
	)
	return item
}

// game returns the freshest known state of the mapping's game. The league's
// schedule is re-fetched once per run; the stored row is the fallback when
// the provider is unavailable or no longer lists the game.
func (r *MarketResolver) game(
	ctx context.Context,
	logger *slog.Logger,
	m domain.MarketMapping,
	date civil.Date,
	fresh map[domain.League]map[string]domain.Game,
) (domain.Game, error) {
	byID, ok := fresh[m.League]
	if !ok {
		byID = make(map[string]domain.Game)
		if r.refresher != nil {
			rep, err := r.refresher.Fetch(ctx, m.League, date)
			if err != nil {
				logger.WarnContext(ctx, "schedule refresh failed, using stored games",
					slog.String("error", err.Error()),
				)
			}
			for _, g := range rep.Games {
				byID[g.GameID] = g
			}
		}
		fresh[m.League] = byID
	}

	if g, ok := byID[m.GameID]; ok {
		return g, nil
	}
	g, err := r.games.Get(ctx, m.League, m.GameID)
	if err != nil {
		return domain.Game{}, fmt.Errorf("market_resolver: get game %s/%s: %w", m.League, m.GameID, err)
	}
	return g, nil
}
