package sports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/domain"
)

// SportMonks league ids.
const (
	SportMonksPremierLeague   = 8
	SportMonksChampionsLeague = 2
)

// SportMonksClient reads one football league's fixtures from SportMonks v3.
type SportMonksClient struct {
	restClient
	league   domain.League
	leagueID int
	token    string
}

// NewSportMonksClient creates a client bound to one league. leagueID is the
// SportMonks league id.
func NewSportMonksClient(baseURL, token string, league domain.League, leagueID int) *SportMonksClient {
	if baseURL == "" {
		baseURL = DefaultSportMonksBaseURL
	}
	return &SportMonksClient{
		restClient: newRESTClient("sportmonks", baseURL, nil),
		league:     league,
		leagueID:   leagueID,
		token:      token,
	}
}

// League implements domain.ScheduleProvider.
func (c *SportMonksClient) League() domain.League { return c.league }

type smResponse struct {
	Data    []smFixture `json:"data"`
	Message string      `json:"message"`
}

type smFixture struct {
	ID                  int64           `json:"id"`
	LeagueID            int64           `json:"league_id"`
	StartingAtTimestamp int64           `json:"starting_at_timestamp"`
	State               smState         `json:"state"`
	Participants        []smParticipant `json:"participants"`
	Scores              []smScore       `json:"scores"`
}

type smState struct {
	DeveloperName string `json:"developer_name"`
}

type smParticipant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Meta struct {
		Location string `json:"location"`
	} `json:"meta"`
}

type smScore struct {
	ParticipantID int64  `json:"participant_id"`
	Description   string `json:"description"`
	Score         struct {
		Goals       int    `json:"goals"`
		Participant string `json:"participant"`
	} `json:"score"`
}

// FetchGames returns the league's fixtures for date.
func (c *SportMonksClient) FetchGames(ctx context.Context, date civil.Date) ([]domain.Game, error) {
	params := url.Values{}
	params.Set("api_token", c.token)
	params.Set("include", "participants;scores;state")
	params.Set("filters", "fixtureLeagues:"+strconv.Itoa(c.leagueID))

	body, err := c.doGet(ctx, "/fixtures/date/"+date.String(), params)
	if err != nil {
		return nil, fmt.Errorf("sports/sportmonks: get fixtures %s %s: %w", c.league, date, err)
	}

	var resp smResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sports/sportmonks: decode fixtures: %w", err)
	}

	games := make([]domain.Game, 0, len(resp.Data))
	for _, f := range resp.Data {
		if f.LeagueID != int64(c.leagueID) {
			continue
		}
		var home, away smParticipant
		for _, p := range f.Participants {
			switch p.Meta.Location {
			case "home":
				home = p
			case "away":
				away = p
			}
		}
		id := strconv.FormatInt(f.ID, 10)
		if home.Name == "" || away.Name == "" {
			c.skipGame(ctx, id, "missing home or away participant")
			continue
		}
		if f.StartingAtTimestamp <= 0 {
			c.skipGame(ctx, id, "missing kickoff timestamp")
			continue
		}
		status := SportMonksStatus(f.State.DeveloperName)
		game := domain.Game{
			GameID:    id,
			League:    c.league,
			HomeTeam:  home.Name,
			AwayTeam:  away.Name,
			StartTime: time.Unix(f.StartingAtTimestamp, 0).UTC(),
			Status:    status,
		}
		if status == domain.GameFinished || status == domain.GameInProgress {
			game.HomeScore, game.AwayScore = regulationScore(f.Scores, status == domain.GameFinished)
		}
		games = append(games, game)
	}
	return games, nil
}

// regulationScore picks the 90-minute score for finished fixtures, falling
// back to the running score, so extra time and penalties never change the
// 1X2 outcome.
func regulationScore(scores []smScore, finished bool) (home, away *int) {
	pick := func(desc string) (h, a *int) {
		for _, s := range scores {
			if s.Description != desc {
				continue
			}
			goals := s.Score.Goals
			switch s.Score.Participant {
			case "home":
				h = &goals
			case "away":
				a = &goals
			}
		}
		return h, a
	}
	if finished {
		if h, a := pick("2ND_HALF"); h != nil && a != nil {
			return h, a
		}
	}
	return pick("CURRENT")
}
