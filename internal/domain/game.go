package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// League identifies a sports competition with its own data provider.
type League string

const (
	LeagueNBA League = "NBA"
	LeagueNFL League = "NFL"
	LeagueEPL League = "EPL"
	LeagueCL  League = "CL"
)

// Leagues lists every supported league in display order.
var Leagues = []League{LeagueNBA, LeagueNFL, LeagueEPL, LeagueCL}

// ParseLeague accepts a league tag in any case.
func ParseLeague(s string) (League, error) {
	l := League(strings.ToUpper(strings.TrimSpace(s)))
	switch l {
	case LeagueNBA, LeagueNFL, LeagueEPL, LeagueCL:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLeague, s)
}

// HasDraw reports whether games in the league can end level, which decides
// whether its markets carry a third "Draw" option.
func (l League) HasDraw() bool {
	return l == LeagueEPL || l == LeagueCL
}

// GameStatus is the provider-independent game lifecycle state.
type GameStatus string

const (
	GameScheduled  GameStatus = "scheduled"
	GameInProgress GameStatus = "in-progress"
	GameFinished   GameStatus = "finished"
	GamePostponed  GameStatus = "postponed"
	GameCancelled  GameStatus = "cancelled"
	GameUnknown    GameStatus = "unknown"
)

// Game is a normalized fixture from any sports provider. It is identified by
// (League, GameID).
type Game struct {
	GameID    string     `json:"game_id"`
	League    League     `json:"league"`
	HomeTeam  string     `json:"home_team"`
	AwayTeam  string     `json:"away_team"`
	LocalDate civil.Date `json:"local_date"`
	StartTime time.Time  `json:"start_time"`
	HomeScore *int       `json:"home_score"`
	AwayScore *int       `json:"away_score"`
	Status    GameStatus `json:"status"`
	UpdatedAt time.Time  `json:"updated_at,omitempty"`
}

// Scored reports whether both scores are present.
func (g Game) Scored() bool {
	return g.HomeScore != nil && g.AwayScore != nil
}

// Key returns the composite identity used for locks and logs.
func (g Game) Key() string {
	return string(g.League) + ":" + g.GameID
}
