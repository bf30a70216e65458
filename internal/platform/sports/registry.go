package sports

import (
	"fmt"

	"github.com/vmarket/vmarket/internal/domain"
)

// Registry selects the schedule provider for a league.
type Registry struct {
	providers map[domain.League]domain.ScheduleProvider
}

// NewRegistry indexes providers by their league. A later provider for the
// same league replaces an earlier one.
func NewRegistry(providers ...domain.ScheduleProvider) *Registry {
	r := &Registry{providers: make(map[domain.League]domain.ScheduleProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.League()] = p
	}
	return r
}

// Provider returns the provider for league.
func (r *Registry) Provider(league domain.League) (domain.ScheduleProvider, error) {
	p, ok := r.providers[league]
	if !ok {
		return nil, fmt.Errorf("sports: no provider for %s: %w", league, domain.ErrUnknownLeague)
	}
	return p, nil
}

// Leagues lists the leagues that have a provider, in domain.Leagues order.
func (r *Registry) Leagues() []domain.League {
	out := make([]domain.League, 0, len(r.providers))
	for _, l := range domain.Leagues {
		if _, ok := r.providers[l]; ok {
			out = append(out, l)
		}
	}
	return out
}
