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

// nflLeagueID is the NFL's league id in API-American-Football.
const nflLeagueID = "1"

// NFLClient reads games from API-American-Football on RapidAPI.
type NFLClient struct {
	restClient
}

// NewNFLClient creates an API-American-Football client.
func NewNFLClient(baseURL, host, apiKey string) *NFLClient {
	if baseURL == "" {
		baseURL = DefaultNFLBaseURL
	}
	return &NFLClient{restClient: newRESTClient("nfl", baseURL, rapidAPIHeaders(baseURL, host, apiKey))}
}

// League implements domain.ScheduleProvider.
func (c *NFLClient) League() domain.League { return domain.LeagueNFL }

type nflResponse struct {
	Errors   json.RawMessage `json:"errors"`
	Response []nflGame       `json:"response"`
}

type nflGame struct {
	Game struct {
		ID   int64 `json:"id"`
		Date struct {
			Timestamp int64 `json:"timestamp"`
		} `json:"date"`
		Status struct {
			Short string `json:"short"`
			Long  string `json:"long"`
		} `json:"status"`
	} `json:"game"`
	League struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"league"`
	Teams struct {
		Home apiTeam `json:"home"`
		Away apiTeam `json:"away"`
	} `json:"teams"`
	Scores struct {
		Home nflScore `json:"home"`
		Away nflScore `json:"away"`
	} `json:"scores"`
}

type nflScore struct {
	Total *int `json:"total"`
}

// FetchGames returns the NFL games listed for date.
func (c *NFLClient) FetchGames(ctx context.Context, date civil.Date) ([]domain.Game, error) {
	params := url.Values{}
	params.Set("date", date.String())
	params.Set("league", nflLeagueID)

	body, err := c.doGet(ctx, "/games", params)
	if err != nil {
		return nil, fmt.Errorf("sports/nfl: get games %s: %w", date, err)
	}

	var resp nflResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sports/nfl: decode games: %w", err)
	}
	if apiErr := apiSportsError(resp.Errors); apiErr != "" {
		return nil, fmt.Errorf("sports/nfl: get games %s: %s", date, apiErr)
	}

	games := make([]domain.Game, 0, len(resp.Response))
	for _, g := range resp.Response {
		if strconv.FormatInt(g.League.ID, 10) != nflLeagueID {
			continue
		}
		id := strconv.FormatInt(g.Game.ID, 10)
		if g.Game.Date.Timestamp <= 0 {
			c.skipGame(ctx, id, "missing kickoff timestamp")
			continue
		}
		if g.Teams.Home.Name == "" || g.Teams.Away.Name == "" {
			c.skipGame(ctx, id, "missing team name")
			continue
		}
		status := NFLStatus(g.Game.Status.Short)
		game := domain.Game{
			GameID:    id,
			League:    domain.LeagueNFL,
			HomeTeam:  g.Teams.Home.Name,
			AwayTeam:  g.Teams.Away.Name,
			StartTime: time.Unix(g.Game.Date.Timestamp, 0).UTC(),
			Status:    status,
		}
		if status == domain.GameFinished || status == domain.GameInProgress {
			game.HomeScore = g.Scores.Home.Total
			game.AwayScore = g.Scores.Away.Total
		}
		games = append(games, game)
	}
	return games, nil
}
