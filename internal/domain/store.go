package domain

import (
	"context"
	"time"

	"github.com/golang-sql/civil"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketFilter narrows a mapping listing.
type MarketFilter struct {
	Room   Room
	League League
	ListOpts
}

// GameStore persists normalized games keyed by (league, game_id).
type GameStore interface {
	UpsertBatch(ctx context.Context, games []Game) error
	Get(ctx context.Context, league League, gameID string) (Game, error)
	ListByDate(ctx context.Context, league League, date civil.Date) ([]Game, error)
}

// MarketStore persists market mappings and their resolutions.
type MarketStore interface {
	Create(ctx context.Context, m MarketMapping) error
	ExistsForGame(ctx context.Context, room Room, league League, gameID string) (bool, error)
	Get(ctx context.Context, room Room, marketID int64) (MarketMapping, error)
	List(ctx context.Context, f MarketFilter) ([]MarketMapping, error)
	ListByEndRange(ctx context.Context, room Room, from, to int64) ([]MarketMapping, error)
	RecordResolution(ctx context.Context, r Resolution) error
}

// RuleStore persists the append-only list of resolution rules.
type RuleStore interface {
	Append(ctx context.Context, rule Rule) (int64, error)
	List(ctx context.Context, room Room, opts ListOpts) ([]Rule, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
