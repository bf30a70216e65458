package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vmarket/vmarket/internal/domain"
)

// MarketQuery is the read side of markets needed by the handlers.
type MarketQuery interface {
	ListMappings(ctx context.Context, f domain.MarketFilter) ([]domain.MarketMapping, error)
	Mapping(ctx context.Context, room domain.Room, marketID int64) (domain.MarketMapping, error)
	MarketInfo(ctx context.Context, room domain.Room, marketID int64) (domain.MarketInfo, error)
	Shares(ctx context.Context, room domain.Room, marketID int64, user string) ([]*big.Int, error)
	Rules(ctx context.Context, room domain.Room, opts domain.ListOpts) ([]domain.Rule, error)
}

// EventHistory returns recently published market events.
type EventHistory interface {
	Recent(ctx context.Context, channel string, count int64) ([][]byte, error)
}

// MarketHandler serves the public market endpoints.
type MarketHandler struct {
	markets     MarketQuery
	history     EventHistory
	defaultRoom domain.Room
	logger      *slog.Logger
}

// NewMarketHandler creates a MarketHandler. history may be nil.
func NewMarketHandler(markets MarketQuery, history EventHistory, defaultRoom domain.Room, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets:     markets,
		history:     history,
		defaultRoom: defaultRoom,
		logger:      logger,
	}
}

type listMarketsResponse struct {
	Markets []domain.MarketMapping `json:"markets"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type marketResponse struct {
	Mapping *domain.MarketMapping `json:"mapping,omitempty"`
	Info    domain.MarketInfo     `json:"info"`
}

func (h *MarketHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
	}
	writeError(w, status, clientMessage(status, err, op+" failed"))
}

func marketFilter(r *http.Request, defaultRoom domain.Room) (domain.MarketFilter, error) {
	q := r.URL.Query()
	f := domain.MarketFilter{
		Room:     domain.Room(strings.TrimSpace(q.Get("room"))),
		ListOpts: parseListOpts(r),
	}
	if f.Room == "" {
		f.Room = defaultRoom
	}
	if l := q.Get("league"); l != "" {
		league, err := domain.ParseLeague(l)
		if err != nil {
			return f, err
		}
		f.League = league
	}
	return f, nil
}

// ListMarkets lists market mappings of a room.
// GET /api/markets?room=vesta&league=NBA&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	f, err := marketFilter(r, h.defaultRoom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mappings, err := h.markets.ListMappings(r.Context(), f)
	if err != nil {
		h.fail(w, r, "list markets", err)
		return
	}
	if mappings == nil {
		mappings = []domain.MarketMapping{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: mappings, Limit: f.Limit, Offset: f.Offset})
}

// GetMarket returns the on-chain view of a market with its mapping when one
// exists.
// GET /api/markets/{room}/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	room := domain.Room(r.PathValue("room"))
	id, err := parseMarketID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := h.markets.MarketInfo(r.Context(), room, id)
	if err != nil {
		h.fail(w, r, "get market", err)
		return
	}
	resp := marketResponse{Info: info}
	if m, err := h.markets.Mapping(r.Context(), room, id); err == nil {
		resp.Mapping = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetShares returns a user's shares per option.
// GET /api/markets/{room}/{id}/shares/{user}
func (h *MarketHandler) GetShares(w http.ResponseWriter, r *http.Request) {
	room := domain.Room(r.PathValue("room"))
	id, err := parseMarketID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user := r.PathValue("user")
	if !common.IsHexAddress(user) {
		writeError(w, http.StatusBadRequest, "user is not a valid wallet address")
		return
	}

	shares, err := h.markets.Shares(r.Context(), room, id, user)
	if err != nil {
		h.fail(w, r, "get shares", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":      room,
		"market_id": id,
		"user":      user,
		"shares":    shares,
	})
}

// ListRules lists the resolution rules of a room.
// GET /api/rules?room=vesta&limit=50&offset=0
func (h *MarketHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	room := domain.Room(strings.TrimSpace(r.URL.Query().Get("room")))
	if room == "" {
		room = h.defaultRoom
	}
	rules, err := h.markets.Rules(r.Context(), room, parseListOpts(r))
	if err != nil {
		h.fail(w, r, "list rules", err)
		return
	}
	if rules == nil {
		rules = []domain.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

// RecentEvents returns the latest market events, oldest first.
// GET /api/events?limit=50
func (h *MarketHandler) RecentEvents(w http.ResponseWriter, r *http.Request) {
	events := []json.RawMessage{}
	if h.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
		return
	}

	limit := int64(50)
	if n, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && n > 0 {
		limit = min(n, 500)
	}
	payloads, err := h.history.Recent(r.Context(), domain.MarketEventsChannel, limit)
	if err != nil {
		h.fail(w, r, "recent events", err)
		return
	}
	for _, p := range payloads {
		if json.Valid(p) {
			events = append(events, json.RawMessage(p))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
