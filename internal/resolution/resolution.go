// Package resolution holds the pure rules shared by market creation and
// resolution: question text, option ordering, durations and outcome codes.
package resolution

import (
	"fmt"
	"time"

	"github.com/vmarket/vmarket/internal/domain"
)

// DrawOption is the third option label on leagues that can end level.
const DrawOption = "Draw"

// Outcome codes index into the options list.
const (
	OutcomeAway = 0
	OutcomeHome = 1
	OutcomeDraw = 2
)

// BuildOptions returns [away, home] or [away, home, Draw].
func BuildOptions(g domain.Game) []string {
	opts := []string{g.AwayTeam, g.HomeTeam}
	if g.League.HasDraw() {
		opts = append(opts, DrawOption)
	}
	return opts
}

// BuildQuestion renders the market question for a game.
func BuildQuestion(g domain.Game) string {
	return fmt.Sprintf("%s: %s vs %s (%s) - who will win?",
		g.League, g.AwayTeam, g.HomeTeam, g.LocalDate)
}

// BuildRule renders the human-readable resolution criteria for a game.
func BuildRule(g domain.Game) string {
	rule := fmt.Sprintf(
		"Resolves to %q if %s score more points than %s, or to %q if %s score more, based on the final official result of the %s game on %s.",
		g.AwayTeam, g.AwayTeam, g.HomeTeam, g.HomeTeam, g.HomeTeam, g.League, g.LocalDate)
	switch g.League {
	case domain.LeagueNFL, domain.LeagueNBA:
		rule += " Overtime counts."
	case domain.LeagueEPL, domain.LeagueCL:
		rule += fmt.Sprintf(" Result after regular time including stoppage time; resolves to %q if level.", DrawOption)
	}
	rule += " Postponed or cancelled games are not resolved."
	return rule
}

// Duration returns whole seconds from now until start. Games starting within
// the next second or in the past are not eligible.
func Duration(start, now time.Time) (int64, error) {
	secs := int64(start.Sub(now) / time.Second)
	if secs < 1 {
		return 0, fmt.Errorf("resolution: duration: start %s: %w", start.UTC().Format(time.RFC3339), domain.ErrGameNotEligible)
	}
	return secs, nil
}

// DeriveOutcome maps a final score to an outcome code. A level score is only
// valid when the market offers a draw option.
func DeriveOutcome(awayScore, homeScore, optionCount int) (int, error) {
	if optionCount != 2 && optionCount != 3 {
		return 0, fmt.Errorf("resolution: derive outcome: %d options: %w", optionCount, domain.ErrInvalidOptions)
	}
	switch {
	case awayScore > homeScore:
		return OutcomeAway, nil
	case homeScore > awayScore:
		return OutcomeHome, nil
	case optionCount == 3:
		return OutcomeDraw, nil
	default:
		return 0, fmt.Errorf("resolution: derive outcome: %d-%d: %w", awayScore, homeScore, domain.ErrDrawNotOffered)
	}
}

// OutcomeForGame checks the game is finished and scored, then derives the
// outcome for a market with optionCount options.
func OutcomeForGame(g domain.Game, optionCount int) (int, error) {
	if g.Status != domain.GameFinished {
		return 0, fmt.Errorf("resolution: %s status %s: %w", g.Key(), g.Status, domain.ErrGameNotFinished)
	}
	if !g.Scored() {
		return 0, fmt.Errorf("resolution: %s: %w", g.Key(), domain.ErrMissingScore)
	}
	return DeriveOutcome(*g.AwayScore, *g.HomeScore, optionCount)
}
