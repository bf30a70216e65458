package sports

import (
	"strings"

	"github.com/vmarket/vmarket/internal/domain"
)

// API-NBA reports status.short as a number.
var nbaStatus = map[int]domain.GameStatus{
	1: domain.GameScheduled,
	2: domain.GameInProgress,
	3: domain.GameFinished,
}

// API-American-Football status.short codes.
var nflStatus = map[string]domain.GameStatus{
	"NS":   domain.GameScheduled,
	"TBD":  domain.GameScheduled,
	"Q1":   domain.GameInProgress,
	"Q2":   domain.GameInProgress,
	"Q3":   domain.GameInProgress,
	"Q4":   domain.GameInProgress,
	"OT":   domain.GameInProgress,
	"HT":   domain.GameInProgress,
	"FT":   domain.GameFinished,
	"AOT":  domain.GameFinished,
	"PST":  domain.GamePostponed,
	"CANC": domain.GameCancelled,
}

// SportMonks state.developer_name values.
var sportMonksStatus = map[string]domain.GameStatus{
	"NS":               domain.GameScheduled,
	"TBA":              domain.GameScheduled,
	"DELAYED":          domain.GameScheduled,
	"INPLAY_1ST_HALF":  domain.GameInProgress,
	"HT":               domain.GameInProgress,
	"INPLAY_2ND_HALF":  domain.GameInProgress,
	"BREAK":            domain.GameInProgress,
	"INPLAY_ET":        domain.GameInProgress,
	"EXTRA_TIME_BREAK": domain.GameInProgress,
	"PEN_BREAK":        domain.GameInProgress,
	"INPLAY_PENALTIES": domain.GameInProgress,
	"INTERRUPTED":      domain.GameInProgress,
	"FT":               domain.GameFinished,
	"AET":              domain.GameFinished,
	"FT_PEN":           domain.GameFinished,
	"AWARDED":          domain.GameFinished,
	"POSTPONED":        domain.GamePostponed,
	"SUSPENDED":        domain.GamePostponed,
	"CANCELLED":        domain.GameCancelled,
	"ABANDONED":        domain.GameCancelled,
	"DELETED":          domain.GameCancelled,
}

// NBAStatus maps an API-NBA status to GameStatus. The long form wins for
// postponements and cancellations, which keep short code 1.
func NBAStatus(short int, long string) domain.GameStatus {
	switch l := strings.ToLower(long); {
	case strings.Contains(l, "postponed"):
		return domain.GamePostponed
	case strings.Contains(l, "cancel"):
		return domain.GameCancelled
	}
	if s, ok := nbaStatus[short]; ok {
		return s
	}
	return domain.GameUnknown
}

// NFLStatus maps an API-American-Football short status code.
func NFLStatus(short string) domain.GameStatus {
	if s, ok := nflStatus[strings.ToUpper(short)]; ok {
		return s
	}
	return domain.GameUnknown
}

// SportMonksStatus maps a SportMonks state developer name.
func SportMonksStatus(developerName string) domain.GameStatus {
	if s, ok := sportMonksStatus[strings.ToUpper(developerName)]; ok {
		return s
	}
	return domain.GameUnknown
}
