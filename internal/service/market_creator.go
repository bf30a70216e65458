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

const defaultCreateLockTTL = 5 * time.Minute

// MarketCreator opens one on-chain market per eligible stored game and
// records the mapping and rule for it.
type MarketCreator struct {
	games     domain.GameStore
	markets   domain.MarketStore
	rules     domain.RuleStore
	audit     domain.AuditStore
	contracts domain.ContractRegistry
	locks     domain.LockManager
	lockTTL   time.Duration
	bus       domain.EventBus
	exporter  MappingExporter
	logger    *slog.Logger
	now       func() time.Time
}

// NewMarketCreator creates a MarketCreator with its required dependencies.
func NewMarketCreator(
	games domain.GameStore,
	markets domain.MarketStore,
	rules domain.RuleStore,
	audit domain.AuditStore,
	contracts domain.ContractRegistry,
	logger *slog.Logger,
) *MarketCreator {
	return &MarketCreator{
		games:     games,
		markets:   markets,
		rules:     rules,
		audit:     audit,
		contracts: contracts,
		lockTTL:   defaultCreateLockTTL,
		logger:    logger.With(slog.String("component", "market_creator")),
		now:       time.Now,
	}
}

// SetLockManager guards each game with a distributed lock so concurrent
// runs cannot open duplicate markets.
func (c *MarketCreator) SetLockManager(l domain.LockManager, ttl time.Duration) {
	c.locks = l
	if ttl > 0 {
		c.lockTTL = ttl
	}
}

// SetEventBus enables market_created events.
func (c *MarketCreator) SetEventBus(b domain.EventBus) { c.bus = b }

// SetExporter enables mapping snapshots after a run that created markets.
func (c *MarketCreator) SetExporter(e MappingExporter) { c.exporter = e }

// CreateMarkets creates markets in room for league's games on date. Items
// never abort the run; each one is reported as created, skipped or failed.
func (c *MarketCreator) CreateMarkets(ctx context.Context, room domain.Room, league domain.League, date civil.Date) (domain.CreateReport, error) {
	report := domain.CreateReport{
		RunID:     uuid.NewString(),
		Room:      room,
		League:    league,
		Date:      date,
		StartedAt: c.now().UTC(),
	}

	contract, err := c.contracts.Contract(room)
	if err != nil {
		return report, fmt.Errorf("market_creator: %w", err)
	}

	games, err := c.games.ListByDate(ctx, league, date)
	if err != nil {
		return report, fmt.Errorf("market_creator: list games %s %s: %w", league, date, err)
	}

	logger := c.logger.With(
		slog.String("run_id", report.RunID),
		slog.String("room", string(room)),
		slog.String("league", string(league)),
	)

	for _, g := range games {
		if ctx.Err() != nil {
			break
		}
		item := c.createOne(ctx, logger, contract, room, g)
		report.Items = append(report.Items, item)
	}

	if report.Tally()[domain.ItemCreated] > 0 {
		exportMappings(ctx, c.exporter, c.markets, logger, room, league)
	}

	report.FinishedAt = c.now().UTC()
	t := report.Tally()
	logger.InfoContext(ctx, "create run finished",
		slog.String("date", date.String()),
		slog.Int("games", len(games)),
		slog.Int("created", t[domain.ItemCreated]),
		slog.Int("skipped", t[domain.ItemSkipped]),
		slog.Int("failed", t[domain.ItemFailed]),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("market_creator: %w", err)
	}
	return report, nil
}

func (c *MarketCreator) createOne(ctx context.Context, logger *slog.Logger, contract domain.MarketContract, room domain.Room, g domain.Game) domain.ItemResult {
	item := domain.ItemResult{League: g.League, GameID: g.GameID}
	logger = logger.With(slog.String("game_id", g.GameID))

	skip := func(reason string) domain.ItemResult {
		item.Status = domain.ItemSkipped
		item.Reason = reason
		logger.InfoContext(ctx, "game skipped", slog.String("reason", reason))
		return item
	}
	fail := func(reason string, err error) domain.ItemResult {
		item.Status = domain.ItemFailed
		item.Reason = fmt.Sprintf("%s: %v", reason, err)
		logger.ErrorContext(ctx, "market creation failed",
			slog.String("reason", reason),
			slog.Int64("market_id", item.MarketID),
			slog.String("error", err.Error()),
		)
		return item
	}

	if g.Status == domain.GamePostponed || g.Status == domain.GameCancelled {
		return skip("game " + string(g.Status))
	}
	if _, err := resolution.Duration(g.StartTime, c.now()); err != nil {
		return skip("start time not in the future")
	}

	exists, err := c.markets.ExistsForGame(ctx, room, g.League, g.GameID)
	if err != nil {
		return fail("existence check", err)
	}
	if exists {
		return skip("market already exists")
	}

	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, fmt.Sprintf("create:%s:%s:%s", room, g.League, g.GameID), c.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			return skip("creation in progress elsewhere")
		}
		if err != nil {
			return fail("acquire lock", err)
		}
		defer unlock()

		// Another holder may have finished between the check and the lock.
		exists, err := c.markets.ExistsForGame(ctx, room, g.League, g.GameID)
		if err != nil {
			return fail("existence check", err)
		}
		if exists {
			return skip("market already exists")
		}
	}

	// Recomputed after the checks so the duration is as fresh as possible.
	duration, err := resolution.Duration(g.StartTime, c.now())
	if err != nil {
		return skip("start time not in the future")
	}

	question := resolution.BuildQuestion(g)
	options := resolution.BuildOptions(g)
	created, err := contract.CreateMarket(ctx, question, options, duration)
	if err != nil {
		return fail("create market", err)
	}
	item.MarketID = created.MarketID
	item.TxHash = created.TxHash

	mapping := domain.MarketMapping{
		Room:      room,
		MarketID:  created.MarketID,
		GameID:    g.GameID,
		League:    g.League,
		Question:  question,
		Options:   options,
		EndTime:   created.EndTime,
		TxHash:    created.TxHash,
		CreatedAt: c.now().UTC(),
	}
	if mapping.EndTime == 0 {
		mapping.EndTime = g.StartTime.Unix()
	}
	if err := c.markets.Create(ctx, mapping); err != nil {
		// The market exists on-chain; the reason carries its id for manual repair.
		return fail("store mapping", err)
	}

	if _, err := c.rules.Append(ctx, domain.Rule{
		Room:      room,
		MarketID:  created.MarketID,
		Question:  question,
		Rule:      resolution.BuildRule(g),
		CreatedAt: mapping.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "append rule failed",
			slog.Int64("market_id", created.MarketID),
			slog.String("error", err.Error()),
		)
	}

	audit(ctx, c.audit, logger, "market_created", map[string]any{
		"room":      string(room),
		"market_id": created.MarketID,
		"league":    string(g.League),
		"game_id":   g.GameID,
		"tx_hash":   created.TxHash,
		"duration":  duration,
	})
	publishEvent(ctx, c.bus, logger, domain.MarketEvent{
		Type:      domain.EventMarketCreated,
		Room:      room,
		MarketID:  created.MarketID,
		League:    g.League,
		GameID:    g.GameID,
		Question:  question,
		TxHash:    created.TxHash,
		Timestamp: mapping.CreatedAt,
	})

	item.Status = domain.ItemCreated
	logger.InfoContext(ctx, "market created",
		slog.Int64("market_id", created.MarketID),
		slog.Int64("duration", duration),
		slog.String("tx_hash", created.TxHash),
	)
	return item
}
