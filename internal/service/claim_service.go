package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vmarket/vmarket/internal/domain"
)

// ClaimService claims winnings held by the operator wallet on resolved
// markets.
type ClaimService struct {
	markets   domain.MarketStore
	audit     domain.AuditStore
	contracts domain.ContractRegistry
	account   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewClaimService creates a ClaimService claiming for account.
func NewClaimService(
	markets domain.MarketStore,
	audit domain.AuditStore,
	contracts domain.ContractRegistry,
	account string,
	logger *slog.Logger,
) *ClaimService {
	return &ClaimService{
		markets:   markets,
		audit:     audit,
		contracts: contracts,
		account:   account,
		logger:    logger.With(slog.String("component", "claim_service")),
		now:       time.Now,
	}
}

// Claim claims winnings in room. A non-zero marketID limits the run to that
// market; otherwise every ended mapped market is checked.
func (s *ClaimService) Claim(ctx context.Context, room domain.Room, marketID int64) (domain.ClaimReport, error) {
	report := domain.ClaimReport{
		RunID:     uuid.NewString(),
		Room:      room,
		Account:   s.account,
		StartedAt: s.now().UTC(),
	}

	contract, err := s.contracts.Contract(room)
	if err != nil {
		return report, fmt.Errorf("claim_service: %w", err)
	}

	var ids []int64
	if marketID > 0 {
		ids = []int64{marketID}
	} else {
		mappings, err := s.markets.ListByEndRange(ctx, room, 0, s.now().Unix()+1)
		if err != nil {
			return report, fmt.Errorf("claim_service: list markets %s: %w", room, err)
		}
		for _, m := range mappings {
			ids = append(ids, m.MarketID)
		}
	}

	logger := s.logger.With(slog.String("run_id", report.RunID), slog.String("room", string(room)))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		report.Items = append(report.Items, s.claimOne(ctx, logger, contract, room, id))
	}

	report.FinishedAt = s.now().UTC()
	t := report.Tally()
	logger.InfoContext(ctx, "claim run finished",
		slog.Int("markets", len(ids)),
		slog.Int("claimed", t[domain.ItemClaimed]),
		slog.Int("failed", t[domain.ItemFailed]),
	)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("claim_service: %w", err)
	}
	return report, nil
}

func (s *ClaimService) claimOne(ctx context.Context, logger *slog.Logger, contract domain.MarketContract, room domain.Room, marketID int64) domain.ItemResult {
	item := domain.ItemResult{MarketID: marketID, Status: domain.ItemSkipped}
	logger = logger.With(slog.Int64("market_id", marketID))

	fail := func(reason string, err error) domain.ItemResult {
		item.Status = domain.ItemFailed
		item.Reason = fmt.Sprintf("%s: %v", reason, err)
		logger.ErrorContext(ctx, "claim failed", slog.String("reason", reason), slog.String("error", err.Error()))
		return item
	}

	info, err := contract.GetMarketInfo(ctx, marketID)
	if err != nil {
		return fail("get market info", err)
	}
	if !info.Resolved {
		item.Reason = "not resolved"
		return item
	}
	outcome := int(info.Outcome)
	item.Outcome = &outcome

	shares, err := contract.GetSharesBalance(ctx, marketID, s.account)
	if err != nil {
		return fail("get shares", err)
	}
	if outcome < 0 || outcome >= len(shares) || shares[outcome] == nil || shares[outcome].Sign() <= 0 {
		item.Reason = "no winning shares"
		return item
	}

	txHash, err := contract.ClaimWinnings(ctx, marketID)
	if err != nil {
		return fail("claim winnings", err)
	}
	item.TxHash = txHash
	item.Status = domain.ItemClaimed

	audit(ctx, s.audit, logger, "winnings_claimed", map[string]any{
		"room":      string(room),
		"market_id": marketID,
		"account":   s.account,
		"shares":    shares[outcome].String(),
		"tx_hash":   txHash,
	})
	logger.InfoContext(ctx, "winnings claimed",
		slog.String("shares", shares[outcome].String()),
		slog.String("tx_hash", txHash),
	)
	return item
}
