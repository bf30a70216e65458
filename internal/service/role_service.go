package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmarket/vmarket/internal/domain"
)

// RoleService lists, grants and revokes contract roles.
type RoleService struct {
	contracts domain.ContractRegistry
	audit     domain.AuditStore
	logger    *slog.Logger
}

// NewRoleService creates a RoleService.
func NewRoleService(contracts domain.ContractRegistry, audit domain.AuditStore, logger *slog.Logger) *RoleService {
	return &RoleService{
		contracts: contracts,
		audit:     audit,
		logger:    logger.With(slog.String("component", "role_service")),
	}
}

// ListRoles returns the roles address holds in room.
func (s *RoleService) ListRoles(ctx context.Context, room domain.Room, address string) ([]domain.Role, error) {
	contract, err := s.contracts.Contract(room)
	if err != nil {
		return nil, fmt.Errorf("role_service: %w", err)
	}

	held := []domain.Role{}
	for _, role := range domain.Roles {
		ok, err := contract.HasRole(ctx, role, address)
		if err != nil {
			return nil, fmt.Errorf("role_service: has role %s: %w: %w", role, domain.ErrServiceUnavailable, err)
		}
		if ok {
			held = append(held, role)
		}
	}
	return held, nil
}

// Grant gives role to account in room on behalf of actor.
func (s *RoleService) Grant(ctx context.Context, room domain.Room, role domain.Role, account, actor string) (string, error) {
	return s.change(ctx, "grant", room, role, account, actor)
}

// Revoke removes role from account in room on behalf of actor.
func (s *RoleService) Revoke(ctx context.Context, room domain.Room, role domain.Role, account, actor string) (string, error) {
	return s.change(ctx, "revoke", room, role, account, actor)
}

func (s *RoleService) change(ctx context.Context, action string, room domain.Room, role domain.Role, account, actor string) (string, error) {
	contract, err := s.contracts.Contract(room)
	if err != nil {
		return "", fmt.Errorf("role_service: %w", err)
	}

	var txHash string
	if action == "grant" {
		txHash, err = contract.GrantRole(ctx, role, account)
	} else {
		txHash, err = contract.RevokeRole(ctx, role, account)
	}
	if err != nil {
		return "", fmt.Errorf("role_service: %s %s: %w", action, role, err)
	}

	audit(ctx, s.audit, s.logger, "role_"+action, map[string]any{
		"room":    string(room),
		"role":    string(role),
		"account": account,
		"actor":   actor,
		"tx_hash": txHash,
	})
	s.logger.InfoContext(ctx, "role changed",
		slog.String("action", action),
		slog.String("room", string(room)),
		slog.String("role", string(role)),
		slog.String("account", account),
		slog.String("actor", actor),
		slog.String("tx_hash", txHash),
	)
	return txHash, nil
}
