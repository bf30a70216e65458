package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-sql/civil"

	"github.com/vmarket/vmarket/internal/domain"
	"github.com/vmarket/vmarket/internal/server/middleware"
)

// ScheduleService fetches and stores a league's games for a date.
type ScheduleService interface {
	Fetch(ctx context.Context, league domain.League, date civil.Date) (domain.FetchReport, error)
}

// MarketCreator opens markets for stored games.
type MarketCreator interface {
	CreateMarkets(ctx context.Context, room domain.Room, league domain.League, date civil.Date) (domain.CreateReport, error)
}

// MarketResolver settles finished markets.
type MarketResolver interface {
	ResolveMarkets(ctx context.Context, room domain.Room, date civil.Date, league domain.League) (domain.ResolveReport, error)
}

// RoleManager reads and changes contract roles.
type RoleManager interface {
	ListRoles(ctx context.Context, room domain.Room, address string) ([]domain.Role, error)
	Grant(ctx context.Context, room domain.Room, role domain.Role, account, actor string) (string, error)
	Revoke(ctx context.Context, room domain.Room, role domain.Role, account, actor string) (string, error)
}

// AdminHandler serves the privileged /api/admin routes. Role checks happen
// in middleware before these handlers run.
type AdminHandler struct {
	schedule    ScheduleService
	creator     MarketCreator
	resolver    MarketResolver
	roles       RoleManager
	markets     MarketQuery
	defaultRoom domain.Room
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	schedule ScheduleService,
	creator MarketCreator,
	resolver MarketResolver,
	roles RoleManager,
	markets MarketQuery,
	defaultRoom domain.Room,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		schedule:    schedule,
		creator:     creator,
		resolver:    resolver,
		roles:       roles,
		markets:     markets,
		defaultRoom: defaultRoom,
		logger:      logger,
	}
}

type fetchGamesRequest struct {
	League  string `json:"league" validate:"required"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Address string `json:"address" validate:"required,eth_addr"`
	Room    string `json:"room"`
}

type createMarketsRequest struct {
	League  string `json:"league" validate:"required"`
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Address string `json:"address" validate:"required,eth_addr"`
	Room    string `json:"room"`
}

type resolveMarketsRequest struct {
	Date    string `json:"date" validate:"required,datetime=2006-01-02"`
	Address string `json:"address" validate:"required,eth_addr"`
	Room    string `json:"room"`
	League  string `json:"league"`
}

type changeRoleRequest struct {
	Address string `json:"address" validate:"required,eth_addr"`
	Room    string `json:"room"`
	Action  string `json:"action" validate:"required,oneof=grant revoke"`
	Role    string `json:"role" validate:"required"`
	Account string `json:"account" validate:"required,eth_addr"`
}

func (h *AdminHandler) room(s string) domain.Room {
	if s = strings.TrimSpace(s); s != "" {
		return domain.Room(s)
	}
	return h.defaultRoom
}

// scope returns the room and actor checked by the role guard, falling back to
// the request body when the route is unguarded.
func (h *AdminHandler) scope(r *http.Request, room, address string) (domain.Room, string) {
	if c, ok := middleware.CallerFrom(r.Context()); ok {
		return c.Room, c.Address
	}
	return h.room(room), address
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed", slog.String("error", err.Error()))
	}
	writeError(w, status, clientMessage(status, err, op+" failed"))
}

// FetchGames fetches and stores a league's schedule for a date.
// POST /api/admin/fetch-games {league, date, address}
func (h *AdminHandler) FetchGames(w http.ResponseWriter, r *http.Request) {
	var req fetchGamesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	league, date, err := parseLeagueDate(req.League, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.schedule.Fetch(r.Context(), league, date)
	if err != nil {
		h.fail(w, r, "fetch games", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// CreateMarkets opens markets for a league's stored games on a date.
// POST /api/admin/create-markets {league, date, address, room}
func (h *AdminHandler) CreateMarkets(w http.ResponseWriter, r *http.Request) {
	var req createMarketsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	league, date, err := parseLeagueDate(req.League, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, _ := h.scope(r, req.Room, req.Address)
	report, err := h.creator.CreateMarkets(r.Context(), room, league, date)
	if err != nil {
		h.fail(w, r, "create markets", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ResolveMarkets resolves finished markets whose end date is date.
// POST /api/admin/resolve-markets {date, address, room, league?}
func (h *AdminHandler) ResolveMarkets(w http.ResponseWriter, r *http.Request) {
	var req resolveMarketsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var league domain.League
	if req.League != "" {
		if league, err = domain.ParseLeague(req.League); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	room, _ := h.scope(r, req.Room, req.Address)
	report, err := h.resolver.ResolveMarkets(r.Context(), room, date, league)
	if err != nil {
		h.fail(w, r, "resolve markets", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListRoles lists the roles an address holds.
// GET /api/admin/roles?address=0x...&room=vesta
func (h *AdminHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	address := strings.TrimSpace(q.Get("address"))
	if err := validate.Var(address, "required,eth_addr"); err != nil {
		writeError(w, http.StatusBadRequest, "address is not a valid wallet address")
		return
	}
	room := h.room(q.Get("room"))

	roles, err := h.roles.ListRoles(r.Context(), room, address)
	if err != nil {
		h.fail(w, r, "list roles", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": address,
		"room":    room,
		"roles":   roles,
	})
}

// ChangeRole grants or revokes a role.
// POST /api/admin/roles {address, room, action, role, account}
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, actor := h.scope(r, req.Room, req.Address)
	var txHash string
	if req.Action == "grant" {
		txHash, err = h.roles.Grant(r.Context(), room, role, req.Account, actor)
	} else {
		txHash, err = h.roles.Revoke(r.Context(), room, role, req.Account, actor)
	}
	if err != nil {
		h.fail(w, r, req.Action+" role", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action":  req.Action,
		"room":    room,
		"role":    role,
		"account": req.Account,
		"tx_hash": txHash,
	})
}

// GetMarkets lists a room's market mappings for the admin dashboard.
// GET /api/admin/get-markets?room=&league=&limit=&offset=
func (h *AdminHandler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	f, err := marketFilter(r, h.defaultRoom)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Room, _ = h.scope(r, string(f.Room), "")
	mappings, err := h.markets.ListMappings(r.Context(), f)
	if err != nil {
		h.fail(w, r, "list markets", err)
		return
	}
	if mappings == nil {
		mappings = []domain.MarketMapping{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: mappings,
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
}

func parseLeagueDate(league, date string) (domain.League, civil.Date, error) {
	l, err := domain.ParseLeague(league)
	if err != nil {
		return "", civil.Date{}, err
	}
	d, err := parseDate(date)
	if err != nil {
		return "", civil.Date{}, err
	}
	return l, d, nil
}
