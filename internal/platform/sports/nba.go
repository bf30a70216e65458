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

// NBAClient reads games from API-NBA on RapidAPI.
type NBAClient struct {
	restClient
}

// NewNBAClient creates an API-NBA client. host is the x-rapidapi-host value;
// when empty it is derived from baseURL.
func NewNBAClient(baseURL, host, apiKey string) *NBAClient {
	if baseURL == "" {
		baseURL = DefaultNBABaseURL
	}
	return &NBAClient{restClient: newRESTClient("nba", baseURL, rapidAPIHeaders(baseURL, host, apiKey))}
}

// League implements domain.ScheduleProvider.
func (c *NBAClient) League() domain.League { return domain.LeagueNBA }

type nbaResponse struct {
	Errors   json.RawMessage `json:"errors"`
	Response []nbaGame       `json:"response"`
}

type nbaGame struct {
	ID     int64  `json:"id"`
	League string `json:"league"`
	Date   struct {
		Start string `json:"start"`
	} `json:"date"`
	Status struct {
		Short int    `json:"short"`
		Long  string `json:"long"`
	} `json:"status"`
	Teams struct {
		Visitors apiTeam `json:"visitors"`
		Home     apiTeam `json:"home"`
	} `json:"teams"`
	Scores struct {
		Visitors nbaScore `json:"visitors"`
		Home     nbaScore `json:"home"`
	} `json:"scores"`
}

type apiTeam struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type nbaScore struct {
	Points *int `json:"points"`
}

// FetchGames returns the NBA ("standard" league) games listed for date.
func (c *NBAClient) FetchGames(ctx context.Context, date civil.Date) ([]domain.Game, error) {
	params := url.Values{}
	params.Set("date", date.String())

	body, err := c.doGet(ctx, "/games", params)
	if err != nil {
		return nil, fmt.Errorf("sports/nba: get games %s: %w", date, err)
	}

	var resp nbaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("sports/nba: decode games: %w", err)
	}
	if apiErr := apiSportsError(resp.Errors); apiErr != "" {
		return nil, fmt.Errorf("sports/nba: get games %s: %s", date, apiErr)
	}

	games := make([]domain.Game, 0, len(resp.Response))
	for _, g := range resp.Response {
		if g.League != "standard" {
			continue
		}
		id := strconv.FormatInt(g.ID, 10)
		start, err := time.Parse(time.RFC3339, g.Date.Start)
		if err != nil {
			c.skipGame(ctx, id, fmt.Sprintf("parse start %q: %v", g.Date.Start, err))
			continue
		}
		if g.Teams.Home.Name == "" || g.Teams.Visitors.Name == "" {
			c.skipGame(ctx, id, "missing team name")
			continue
		}
		status := NBAStatus(g.Status.Short, g.Status.Long)
		game := domain.Game{
			GameID:    id,
			League:    domain.LeagueNBA,
			HomeTeam:  g.Teams.Home.Name,
			AwayTeam:  g.Teams.Visitors.Name,
			StartTime: start.UTC(),
			Status:    status,
		}
		if status == domain.GameFinished || status == domain.GameInProgress {
			game.HomeScore = g.Scores.Home.Points
			game.AwayScore = g.Scores.Visitors.Points
		}
		games = append(games, game)
	}
	return games, nil
}

func rapidAPIHeaders(baseURL, host, apiKey string) map[string]string {
	if host == "" {
		if u, err := url.Parse(baseURL); err == nil {
			host = u.Host
		}
	}
	return map[string]string{
		"x-rapidapi-key":  apiKey,
		"x-rapidapi-host": host,
	}
}

// apiSportsError flattens the api-sports "errors" field, which is an empty
// array on success and an object keyed by parameter on failure.
func apiSportsError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return ""
	}
	out := ""
	for k, v := range m {
		if out != "" {
			out += "; "
		}
		out += k + ": " + v
	}
	return out
}
