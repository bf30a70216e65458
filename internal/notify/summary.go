package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmarket/vmarket/internal/domain"
)

// maxListedItems caps the failed items listed in one summary.
const maxListedItems = 10

// CreateRun summarizes a market creation run.
func (n *Notifier) CreateRun(ctx context.Context, r domain.CreateReport) error {
	t := r.Tally()
	title := fmt.Sprintf("Markets created: %s %s (%s)", r.League, r.Date, r.Room)
	msg := fmt.Sprintf("created %d, skipped %d, failed %d",
		t[domain.ItemCreated], t[domain.ItemSkipped], t[domain.ItemFailed])
	return n.Notify(ctx, EventCreateRun, title, msg+failures(r.Items))
}

// ResolveRun summarizes a market resolution run.
func (n *Notifier) ResolveRun(ctx context.Context, r domain.ResolveReport) error {
	t := r.Tally()
	scope := string(r.League)
	if scope == "" {
		scope = "all leagues"
	}
	title := fmt.Sprintf("Markets resolved: %s %s (%s)", scope, r.Date, r.Room)
	msg := fmt.Sprintf("resolved %d, skipped %d, failed %d",
		t[domain.ItemResolved], t[domain.ItemSkipped], t[domain.ItemFailed])
	return n.Notify(ctx, EventResolveRun, title, msg+failures(r.Items))
}

// ClaimRun summarizes a winnings claim run.
func (n *Notifier) ClaimRun(ctx context.Context, r domain.ClaimReport) error {
	t := r.Tally()
	title := fmt.Sprintf("Winnings claimed (%s)", r.Room)
	msg := fmt.Sprintf("claimed %d, skipped %d, failed %d",
		t[domain.ItemClaimed], t[domain.ItemSkipped], t[domain.ItemFailed])
	return n.Notify(ctx, EventClaimRun, title, msg+failures(r.Items))
}

// Error reports a job that failed outright.
func (n *Notifier) Error(ctx context.Context, job string, err error) error {
	return n.Notify(ctx, EventError, "Job failed: "+job, err.Error())
}

func failures(items []domain.ItemResult) string {
	var b strings.Builder
	listed := 0
	for _, it := range items {
		if it.Status != domain.ItemFailed {
			continue
		}
		if listed == maxListedItems {
			b.WriteString("\n- ...")
			break
		}
		listed++
		switch {
		case it.MarketID != 0 && it.GameID != "":
			fmt.Fprintf(&b, "\n- market %d (game %s): %s", it.MarketID, it.GameID, it.Reason)
		case it.MarketID != 0:
			fmt.Fprintf(&b, "\n- market %d: %s", it.MarketID, it.Reason)
		default:
			fmt.Fprintf(&b, "\n- game %s: %s", it.GameID, it.Reason)
		}
	}
	return b.String()
}
