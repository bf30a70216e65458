package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vmarket/vmarket/internal/domain"
)

// Authorizer checks a caller's role on a room's contract. Unlike a bare
// hasRole call, a failed read is reported as Unavailable rather than Denied.
type Authorizer struct {
	contracts domain.ContractRegistry
	logger    *slog.Logger
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(contracts domain.ContractRegistry, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		contracts: contracts,
		logger:    logger.With(slog.String("component", "authorizer")),
	}
}

// Authorize reports whether address holds role in room. The error is
// non-nil for an unknown room or when the decision is Unavailable.
func (a *Authorizer) Authorize(ctx context.Context, room domain.Room, role domain.Role, address string) (domain.Decision, error) {
	contract, err := a.contracts.Contract(room)
	if err != nil {
		return domain.Denied, fmt.Errorf("authorizer: %w", err)
	}

	ok, err := contract.HasRole(ctx, role, address)
	if err != nil {
		a.logger.WarnContext(ctx, "role check unavailable",
			slog.String("room", string(room)),
			slog.String("role", string(role)),
			slog.String("address", address),
			slog.String("error", err.Error()),
		)
		return domain.Unavailable, fmt.Errorf("authorizer: has role %s: %w: %w", role, domain.ErrServiceUnavailable, err)
	}
	if !ok {
		a.logger.InfoContext(ctx, "role check denied",
			slog.String("room", string(room)),
			slog.String("role", string(role)),
			slog.String("address", address),
		)
		return domain.Denied, nil
	}
	return domain.Authorized, nil
}

// AuthorizeAny authorizes when address holds at least one of roles. It is
// Unavailable only if no role granted access and at least one check failed.
func (a *Authorizer) AuthorizeAny(ctx context.Context, room domain.Room, address string, roles ...domain.Role) (domain.Decision, error) {
	var lastErr error
	for _, role := range roles {
		d, err := a.Authorize(ctx, room, role, address)
		switch d {
		case domain.Authorized:
			return d, nil
		case domain.Unavailable:
			lastErr = err
		default:
			if err != nil {
				return d, err
			}
		}
	}
	if lastErr != nil {
		return domain.Unavailable, lastErr
	}
	return domain.Denied, nil
}
