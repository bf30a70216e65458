package resolution

import (
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

func intp(v int) *int { return &v }

func TestDeriveOutcome(t *testing.T) {
	for away := 0; away <= 5; away++ {
		for home := 0; home <= 5; home++ {
			for _, n := range []int{2, 3} {
				got, err := DeriveOutcome(away, home, n)
				switch {
				case away > home:
					require.NoError(t, err)
					assert.Equal(t, OutcomeAway, got)
				case home > away:
					require.NoError(t, err)
					assert.Equal(t, OutcomeHome, got)
				case n == 3:
					require.NoError(t, err)
					assert.Equal(t, OutcomeDraw, got)
				default:
					assert.ErrorIs(t, err, domain.ErrDrawNotOffered)
				}
			}
		}
	}
}

func TestDeriveOutcomeBadOptionCount(t *testing.T) {
	_, err := DeriveOutcome(1, 0, 4)
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)
}

func TestOutcomeForGame_LakersHomeWin(t *testing.T) {
	g := domain.Game{
		League:    domain.LeagueNBA,
		GameID:    "1",
		HomeTeam:  "Lakers",
		AwayTeam:  "Bulls",
		HomeScore: intp(110),
		AwayScore: intp(101),
		Status:    domain.GameFinished,
	}
	opts := BuildOptions(g)
	assert.Equal(t, []string{"Bulls", "Lakers"}, opts)

	out, err := OutcomeForGame(g, len(opts))
	require.NoError(t, err)
	assert.Equal(t, 1, out)
	assert.Equal(t, "Lakers", opts[out])
}

func TestOutcomeForGame_Draw(t *testing.T) {
	g := domain.Game{
		League:    domain.LeagueEPL,
		GameID:    "9",
		HomeTeam:  "Home",
		AwayTeam:  "Away",
		HomeScore: intp(2),
		AwayScore: intp(2),
		Status:    domain.GameFinished,
	}
	opts := BuildOptions(g)
	assert.Equal(t, []string{"Away", "Home", "Draw"}, opts)

	out, err := OutcomeForGame(g, len(opts))
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestOutcomeForGame_NotFinished(t *testing.T) {
	g := domain.Game{League: domain.LeagueNFL, Status: domain.GameInProgress, HomeScore: intp(7), AwayScore: intp(3)}
	_, err := OutcomeForGame(g, 2)
	assert.ErrorIs(t, err, domain.ErrGameNotFinished)

	g.Status = domain.GameFinished
	g.HomeScore = nil
	_, err = OutcomeForGame(g, 2)
	assert.ErrorIs(t, err, domain.ErrMissingScore)
}

func TestDuration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	d, err := Duration(now.Add(10*time.Minute), now)
	require.NoError(t, err)
	assert.EqualValues(t, 600, d)

	d, err = Duration(now.Add(1500*time.Millisecond), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, d)

	_, err = Duration(now.Add(-10*time.Minute), now)
	assert.ErrorIs(t, err, domain.ErrGameNotEligible)

	_, err = Duration(now.Add(500*time.Millisecond), now)
	assert.ErrorIs(t, err, domain.ErrGameNotEligible)
}

func TestBuildQuestionAndRule(t *testing.T) {
	g := domain.Game{
		League:    domain.LeagueCL,
		HomeTeam:  "Real Madrid",
		AwayTeam:  "Arsenal",
		LocalDate: civil.Date{Year: 2025, Month: time.April, Day: 16},
	}
	assert.Equal(t, "CL: Arsenal vs Real Madrid (2025-04-16) - who will win?", BuildQuestion(g))

	rule := BuildRule(g)
	assert.Contains(t, rule, `"Draw" if level`)
	assert.Contains(t, rule, "2025-04-16")

	g.League = domain.LeagueNBA
	assert.Contains(t, BuildRule(g), "Overtime counts.")
}
