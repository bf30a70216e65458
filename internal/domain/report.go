package domain

import (
	"time"

	"github.com/golang-sql/civil"
)

// ItemStatus is the outcome of one item in a batch run.
type ItemStatus string

const (
	ItemCreated  ItemStatus = "created"
	ItemResolved ItemStatus = "resolved"
	ItemClaimed  ItemStatus = "claimed"
	ItemSkipped  ItemStatus = "skipped"
	ItemFailed   ItemStatus = "failed"
)

// ItemResult records what happened to one game or market during a run.
type ItemResult struct {
	League   League     `json:"league,omitempty"`
	GameID   string     `json:"game_id,omitempty"`
	MarketID int64      `json:"market_id,omitempty"`
	Outcome  *int       `json:"outcome,omitempty"`
	TxHash   string     `json:"tx_hash,omitempty"`
	Status   ItemStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
}

// Tally counts item results by status.
type Tally map[ItemStatus]int

func tally(items []ItemResult) Tally {
	t := Tally{}
	for _, it := range items {
		t[it.Status]++
	}
	return t
}

// FetchReport summarizes one schedule fetch.
type FetchReport struct {
	RunID      string     `json:"run_id"`
	League     League     `json:"league"`
	Date       civil.Date `json:"date"`
	Games      []Game     `json:"games"`
	FailedDays []string   `json:"failed_days,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// CreateReport summarizes one market creation run.
type CreateReport struct {
	RunID      string       `json:"run_id"`
	Room       Room         `json:"room"`
	League     League       `json:"league"`
	Date       civil.Date   `json:"date"`
	Items      []ItemResult `json:"items"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Tally counts the run's items by status.
func (r CreateReport) Tally() Tally { return tally(r.Items) }

// ResolveReport summarizes one market resolution run.
type ResolveReport struct {
	RunID      string       `json:"run_id"`
	Room       Room         `json:"room"`
	League     League       `json:"league,omitempty"`
	Date       civil.Date   `json:"date"`
	Items      []ItemResult `json:"items"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Tally counts the run's items by status.
func (r ResolveReport) Tally() Tally { return tally(r.Items) }

// ClaimReport summarizes one winnings claim run for the operator wallet.
type ClaimReport struct {
	RunID      string       `json:"run_id"`
	Room       Room         `json:"room"`
	Account    string       `json:"account"`
	Items      []ItemResult `json:"items"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Tally counts the run's items by status.
func (r ClaimReport) Tally() Tally { return tally(r.Items) }
