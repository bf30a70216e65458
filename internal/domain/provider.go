package domain

import (
	"context"

	"github.com/golang-sql/civil"
)

// ScheduleProvider fetches one league's games for a single provider-side
// (UTC) date. Normalization to GameStatus happens inside the provider.
type ScheduleProvider interface {
	League() League
	FetchGames(ctx context.Context, date civil.Date) ([]Game, error)
}
