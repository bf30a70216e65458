package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vmarket/vmarket/internal/domain"
)

// RuleStore implements domain.RuleStore using PostgreSQL.
type RuleStore struct {
	pool *pgxpool.Pool
}

// NewRuleStore creates a new RuleStore backed by the given connection pool.
func NewRuleStore(pool *pgxpool.Pool) *RuleStore {
	return &RuleStore{pool: pool}
}

// Append stores a rule and returns its id.
func (s *RuleStore) Append(ctx context.Context, r domain.Rule) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rules (room, market_id, question, rule) VALUES ($1, $2, $3, $4) RETURNING id`,
		string(r.Room), r.MarketID, r.Question, r.Rule,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: append rule %s/%d: %w", r.Room, r.MarketID, err)
	}
	return id, nil
}

// List returns rules newest first. An empty room lists every room.
func (s *RuleStore) List(ctx context.Context, room domain.Room, opts domain.ListOpts) ([]domain.Rule, error) {
	query := `SELECT id, room, market_id, question, rule, created_at FROM rules WHERE 1=1`
	args := []any{}
	argIdx := 1
	if room != "" {
		query += fmt.Sprintf(" AND room = $%d", argIdx)
		args = append(args, string(room))
		argIdx++
	}
	query, args = appendListOpts(query, args, argIdx, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		var r domain.Rule
		var rm string
		if err := rows.Scan(&r.ID, &rm, &r.MarketID, &r.Question, &r.Rule, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan rule: %w", err)
		}
		r.Room = domain.Room(rm)
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rules rows: %w", err)
	}
	return rules, nil
}
