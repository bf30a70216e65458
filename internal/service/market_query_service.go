package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/vmarket/vmarket/internal/domain"
)

// MarketQueryService serves read-only market data from the store and the
// chain, caching on-chain market info when a cache is configured.
type MarketQueryService struct {
	markets   domain.MarketStore
	rules     domain.RuleStore
	contracts domain.ContractRegistry
	cache     domain.MarketInfoCache
	logger    *slog.Logger
}

// NewMarketQueryService creates a MarketQueryService. cache may be nil.
func NewMarketQueryService(
	markets domain.MarketStore,
	rules domain.RuleStore,
	contracts domain.ContractRegistry,
	cache domain.MarketInfoCache,
	logger *slog.Logger,
) *MarketQueryService {
	return &MarketQueryService{
		markets:   markets,
		rules:     rules,
		contracts: contracts,
		cache:     cache,
		logger:    logger.With(slog.String("component", "market_query")),
	}
}

// ListMappings returns stored market mappings.
func (s *MarketQueryService) ListMappings(ctx context.Context, f domain.MarketFilter) ([]domain.MarketMapping, error) {
	out, err := s.markets.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("market_query: list mappings: %w", err)
	}
	return out, nil
}

// Mapping returns one stored mapping.
func (s *MarketQueryService) Mapping(ctx context.Context, room domain.Room, marketID int64) (domain.MarketMapping, error) {
	m, err := s.markets.Get(ctx, room, marketID)
	if err != nil {
		return domain.MarketMapping{}, fmt.Errorf("market_query: get mapping %s/%d: %w", room, marketID, err)
	}
	return m, nil
}

// MarketInfo returns the on-chain view of a market, from cache when fresh.
func (s *MarketQueryService) MarketInfo(ctx context.Context, room domain.Room, marketID int64) (domain.MarketInfo, error) {
	if s.cache != nil {
		if info, err := s.cache.Get(ctx, room, marketID); err == nil {
			return info, nil
		}
	}

	contract, err := s.contracts.Contract(room)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("market_query: %w", err)
	}
	info, err := contract.GetMarketInfo(ctx, marketID)
	if err != nil {
		return domain.MarketInfo{}, fmt.Errorf("market_query: market info %s/%d: %w", room, marketID, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, room, info); err != nil {
			s.logger.WarnContext(ctx, "market info cache set failed",
				slog.String("room", string(room)),
				slog.Int64("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}
	return info, nil
}

// Shares returns user's share balance per option.
func (s *MarketQueryService) Shares(ctx context.Context, room domain.Room, marketID int64, user string) ([]*big.Int, error) {
	contract, err := s.contracts.Contract(room)
	if err != nil {
		return nil, fmt.Errorf("market_query: %w", err)
	}
	shares, err := contract.GetSharesBalance(ctx, marketID, user)
	if err != nil {
		return nil, fmt.Errorf("market_query: shares %s/%d: %w", room, marketID, err)
	}
	return shares, nil
}

// Rules returns the resolution rules appended for room.
func (s *MarketQueryService) Rules(ctx context.Context, room domain.Room, opts domain.ListOpts) ([]domain.Rule, error) {
	out, err := s.rules.List(ctx, room, opts)
	if err != nil {
		return nil, fmt.Errorf("market_query: list rules: %w", err)
	}
	return out, nil
}
