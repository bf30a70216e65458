package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarket/vmarket/internal/domain"
)

// GameStore implements domain.GameStore using PostgreSQL.
type GameStore struct {
	pool *pgxpool.Pool
}

// NewGameStore creates a new GameStore backed by the given connection pool.
func NewGameStore(pool *pgxpool.Pool) *GameStore {
	return &GameStore{pool: pool}
}

const upsertGameSQL = `
	INSERT INTO games (
		league, game_id, home_team, away_team, local_date,
		start_time, home_score, away_score, status, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	ON CONFLICT (league, game_id) DO UPDATE SET
		home_score = EXCLUDED.home_score,
		away_score = EXCLUDED.away_score,
		status     = EXCLUDED.status,
		start_time = EXCLUDED.start_time,
		local_date = EXCLUDED.local_date,
		updated_at = NOW()`

// UpsertBatch inserts new games and refreshes score, status and kickoff of
// existing ones. Team names are kept as first stored.
func (s *GameStore) UpsertBatch(ctx context.Context, games []domain.Game) error {
	if len(games) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, g := range games {
		batch.Queue(upsertGameSQL,
			string(g.League), g.GameID, g.HomeTeam, g.AwayTeam, dateValue(g.LocalDate),
			g.StartTime, g.HomeScore, g.AwayScore, string(g.Status),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range games {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert game batch item %d (%s): %w", i, games[i].Key(), err)
		}
	}
	return nil
}

const gameCols = `league, game_id, home_team, away_team, local_date,
	start_time, home_score, away_score, status, updated_at`

func scanGame(row pgx.Row) (domain.Game, error) {
	var (
		g              domain.Game
		league, status string
		localDate      time.Time
	)
	if err := row.Scan(
		&league, &g.GameID, &g.HomeTeam, &g.AwayTeam, &localDate,
		&g.StartTime, &g.HomeScore, &g.AwayScore, &status, &g.UpdatedAt,
	); err != nil {
		return domain.Game{}, err
	}
	g.League = domain.League(league)
	g.Status = domain.GameStatus(status)
	g.LocalDate = civil.DateOf(localDate)
	return g, nil
}

// Get retrieves a game by (league, game_id).
func (s *GameStore) Get(ctx context.Context, league domain.League, gameID string) (domain.Game, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+gameCols+` FROM games WHERE league = $1 AND game_id = $2`, string(league), gameID)
	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Game{}, domain.ErrNotFound
		}
		return domain.Game{}, fmt.Errorf("postgres: get game %s:%s: %w", league, gameID, err)
	}
	return g, nil
}

// ListByDate returns a league's games on a local date ordered by kickoff.
func (s *GameStore) ListByDate(ctx context.Context, league domain.League, date civil.Date) ([]domain.Game, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gameCols+` FROM games WHERE league = $1 AND local_date = $2 ORDER BY start_time, game_id`,
		string(league), dateValue(date))
	if err != nil {
		return nil, fmt.Errorf("postgres: list games %s %s: %w", league, date, err)
	}
	defer rows.Close()

	var games []domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan game: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list games rows: %w", err)
	}
	return games, nil
}

// dateValue encodes a civil date as a UTC midnight for a DATE column.
func dateValue(d civil.Date) time.Time {
	return d.In(time.UTC)
}
