package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/vmarket/vmarket/internal/domain"
)

// MappingExporter writes the current mapping snapshot for a room and league.
type MappingExporter interface {
	ExportMappings(ctx context.Context, room domain.Room, league domain.League, mappings []domain.MarketMapping) error
}

// publishEvent broadcasts a market event. Failures only log; the on-chain
// action has already happened.
func publishEvent(ctx context.Context, bus domain.EventBus, logger *slog.Logger, ev domain.MarketEvent) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.WarnContext(ctx, "marshal market event failed", slog.String("error", err.Error()))
		return
	}
	if err := bus.Publish(ctx, domain.MarketEventsChannel, payload); err != nil {
		logger.WarnContext(ctx, "publish market event failed",
			slog.String("type", ev.Type),
			slog.String("room", string(ev.Room)),
			slog.Int64("market_id", ev.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// audit records a privileged action. Failures only log.
func audit(ctx context.Context, store domain.AuditStore, logger *slog.Logger, event string, detail map[string]any) {
	if store == nil {
		return
	}
	if err := store.Log(ctx, event, detail); err != nil {
		logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// exportMappings re-exports every mapping of league in room.
func exportMappings(ctx context.Context, exp MappingExporter, markets domain.MarketStore, logger *slog.Logger, room domain.Room, league domain.League) {
	if exp == nil {
		return
	}
	mappings, err := markets.List(ctx, domain.MarketFilter{Room: room, League: league})
	if err == nil {
		err = exp.ExportMappings(ctx, room, league, mappings)
	}
	if err != nil {
		logger.WarnContext(ctx, "mapping export failed",
			slog.String("room", string(room)),
			slog.String("league", string(league)),
			slog.String("error", err.Error()),
		)
	}
}
