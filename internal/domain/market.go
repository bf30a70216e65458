package domain

import (
	"math/big"
	"time"

	"github.com/golang-sql/civil"
)

// Room is a named deployment context (e.g. "vesta", "usdc") selecting which
// contract a request talks to.
type Room string

// MarketMapping links an on-chain market to the game it was created for.
// Rows are written once at creation time and never mutated.
type MarketMapping struct {
	Room      Room      `json:"room"`
	MarketID  int64     `json:"market_id"`
	GameID    string    `json:"game_id"`
	League    League    `json:"league"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	EndTime   int64     `json:"end_time"`
	TxHash    string    `json:"tx_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// EndDate returns the calendar date of the market end time in loc.
func (m MarketMapping) EndDate(loc *time.Location) civil.Date {
	return civil.DateOf(time.Unix(m.EndTime, 0).In(loc))
}

// MarketInfo is the read-only view returned by the contract's getMarketInfo.
type MarketInfo struct {
	MarketID    int64      `json:"market_id"`
	Question    string     `json:"question"`
	Options     []string   `json:"options"`
	EndTime     int64      `json:"end_time"`
	Outcome     int64      `json:"outcome"`
	TotalShares []*big.Int `json:"total_shares"`
	Resolved    bool       `json:"resolved"`
}

// Rule is free-text resolution criteria kept for human reference.
type Rule struct {
	ID        int64     `json:"id"`
	Room      Room      `json:"room"`
	MarketID  int64     `json:"market_id"`
	Question  string    `json:"question"`
	Rule      string    `json:"rule"`
	CreatedAt time.Time `json:"created_at"`
}

// Resolution records a submitted resolveMarket transaction.
type Resolution struct {
	Room       Room      `json:"room"`
	MarketID   int64     `json:"market_id"`
	Outcome    int       `json:"outcome"`
	HomeScore  int       `json:"home_score"`
	AwayScore  int       `json:"away_score"`
	TxHash     string    `json:"tx_hash"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// CreatedMarket is the result of a successful createMarket transaction.
type CreatedMarket struct {
	MarketID int64
	TxHash   string
	EndTime  int64
}

// MarketEvent is published on the event bus whenever the backend changes a
// market's on-chain state.
type MarketEvent struct {
	Type      string    `json:"type"`
	Room      Room      `json:"room"`
	MarketID  int64     `json:"market_id"`
	League    League    `json:"league,omitempty"`
	GameID    string    `json:"game_id,omitempty"`
	Question  string    `json:"question,omitempty"`
	Outcome   *int      `json:"outcome,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventMarketCreated  = "market_created"
	EventMarketResolved = "market_resolved"

	// MarketEventsChannel is the pub/sub channel carrying MarketEvent JSON.
	MarketEventsChannel = "ch:markets"
)
