package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarket/vmarket/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Create inserts a market mapping. A second mapping for the same game in
// the same room fails with domain.ErrAlreadyExists; a mapping for a game
// that was never stored fails with domain.ErrNotFound.
func (s *MarketStore) Create(ctx context.Context, m domain.MarketMapping) error {
	const query = `
		INSERT INTO markets (
			room, market_id, league, game_id, question, options, end_time, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		string(m.Room), m.MarketID, string(m.League), m.GameID,
		m.Question, m.Options, m.EndTime, m.TxHash,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %s/%d: %w", m.Room, m.MarketID, mapPgError(err))
	}
	return nil
}

// ExistsForGame reports whether room already has a market for the game.
func (s *MarketStore) ExistsForGame(ctx context.Context, room domain.Room, league domain.League, gameID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM markets WHERE room = $1 AND league = $2 AND game_id = $3)`,
		string(room), string(league), gameID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: market exists %s %s:%s: %w", room, league, gameID, err)
	}
	return exists, nil
}

const mappingCols = `room, market_id, league, game_id, question, options, end_time, tx_hash, created_at`

func scanMapping(row pgx.Row) (domain.MarketMapping, error) {
	var (
		m            domain.MarketMapping
		room, league string
	)
	if err := row.Scan(
		&room, &m.MarketID, &league, &m.GameID, &m.Question,
		&m.Options, &m.EndTime, &m.TxHash, &m.CreatedAt,
	); err != nil {
		return domain.MarketMapping{}, err
	}
	m.Room = domain.Room(room)
	m.League = domain.League(league)
	return m, nil
}

// Get retrieves a mapping by (room, market_id).
func (s *MarketStore) Get(ctx context.Context, room domain.Room, marketID int64) (domain.MarketMapping, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+mappingCols+` FROM markets WHERE room = $1 AND market_id = $2`, string(room), marketID)
	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketMapping{}, domain.ErrNotFound
		}
		return domain.MarketMapping{}, fmt.Errorf("postgres: get market %s/%d: %w", room, marketID, err)
	}
	return m, nil
}

// List returns mappings newest first, optionally narrowed by room and league.
func (s *MarketStore) List(ctx context.Context, f domain.MarketFilter) ([]domain.MarketMapping, error) {
	query := `SELECT ` + mappingCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Room != "" {
		query += fmt.Sprintf(" AND room = $%d", argIdx)
		args = append(args, string(f.Room))
		argIdx++
	}
	if f.League != "" {
		query += fmt.Sprintf(" AND league = $%d", argIdx)
		args = append(args, string(f.League))
		argIdx++
	}
	query, args = appendListOpts(query, args, argIdx, "created_at", f.ListOpts)

	return s.query(ctx, "list markets", query, args...)
}

// ListByEndRange returns a room's mappings with from <= end_time < to,
// ordered by end time.
func (s *MarketStore) ListByEndRange(ctx context.Context, room domain.Room, from, to int64) ([]domain.MarketMapping, error) {
	return s.query(ctx, "list markets by end time",
		`SELECT `+mappingCols+` FROM markets
		 WHERE room = $1 AND end_time >= $2 AND end_time < $3
		 ORDER BY end_time, market_id`,
		string(room), from, to)
}

func (s *MarketStore) query(ctx context.Context, op, query string, args ...any) ([]domain.MarketMapping, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.MarketMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: scan: %w", op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return out, nil
}

// RecordResolution stores a submitted resolution. Recording the same market
// twice fails with domain.ErrAlreadyExists.
func (s *MarketStore) RecordResolution(ctx context.Context, r domain.Resolution) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO resolutions (room, market_id, outcome, home_score, away_score, tx_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (room, market_id) DO NOTHING`,
		string(r.Room), r.MarketID, r.Outcome, r.HomeScore, r.AwayScore, r.TxHash,
	)
	if err != nil {
		return fmt.Errorf("postgres: record resolution %s/%d: %w", r.Room, r.MarketID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: record resolution %s/%d: %w", r.Room, r.MarketID, domain.ErrAlreadyExists)
	}
	return nil
}
