package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vmarket/vmarket/internal/domain"
)

// WalletHeader carries the caller's wallet address.
const WalletHeader = "X-Wallet-Address"

const maxBodyBytes = 1 << 20

// Authorizer decides whether an address holds any of the given roles.
type Authorizer interface {
	AuthorizeAny(ctx context.Context, room domain.Room, address string, roles ...domain.Role) (domain.Decision, error)
}

type callerKey struct{}

// Caller identifies an authorized request.
type Caller struct {
	Address string
	Room    domain.Room
}

// CallerFrom returns the caller stored by RoleGuard.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// RoleGuard admits requests whose wallet address holds one of roles on the
// request's room contract. The address comes from the X-Wallet-Address
// header, the "address" query parameter, or the JSON body's "address"
// field; the room from the query or body "room", else defaultRoom.
//
// Responses: 400 for a missing or malformed address or an unknown room,
// 403 when the role is not held, 503 when the check could not be made.
func RoleGuard(auth Authorizer, defaultRoom domain.Room, logger *slog.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			address, room, err := callerIdentity(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if address == "" {
				writeError(w, http.StatusBadRequest, "address is required")
				return
			}
			if !common.IsHexAddress(address) {
				writeError(w, http.StatusBadRequest, "address is not a valid wallet address")
				return
			}
			if room == "" {
				room = defaultRoom
			}

			decision, err := auth.AuthorizeAny(r.Context(), room, address, roles...)
			switch {
			case errors.Is(err, domain.ErrUnknownRoom):
				writeError(w, http.StatusBadRequest, "unknown room")
				return
			case decision == domain.Unavailable:
				writeError(w, http.StatusServiceUnavailable, "role check unavailable, try again later")
				return
			case decision != domain.Authorized:
				logger.InfoContext(r.Context(), "access denied",
					slog.String("path", r.URL.Path),
					slog.String("address", address),
					slog.String("room", string(room)),
				)
				writeError(w, http.StatusForbidden, "address lacks the required role")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, Caller{Address: address, Room: room})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerIdentity reads address and room without consuming the body. A body
// that names a different address or room than the header or query is
// rejected, so the handler cannot act outside the checked scope.
func callerIdentity(r *http.Request) (string, domain.Room, error) {
	q := r.URL.Query()
	address := strings.TrimSpace(r.Header.Get(WalletHeader))
	if address == "" {
		address = strings.TrimSpace(q.Get("address"))
	}
	room := domain.Room(strings.TrimSpace(q.Get("room")))

	if r.Body == nil || r.Method == http.MethodGet {
		return address, room, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	_ = r.Body.Close()
	if err != nil {
		return "", "", errors.New("could not read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(bytes.TrimSpace(raw)) == 0 {
		return address, room, nil
	}

	var body struct {
		Address string `json:"address"`
		Room    string `json:"room"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", "", errors.New("invalid JSON body")
	}

	bodyAddress := strings.TrimSpace(body.Address)
	switch {
	case address == "":
		address = bodyAddress
	case bodyAddress != "" && !sameAddress(address, bodyAddress):
		return "", "", errors.New("body address does not match the caller address")
	}

	bodyRoom := domain.Room(strings.TrimSpace(body.Room))
	switch {
	case room == "":
		room = bodyRoom
	case bodyRoom != "" && bodyRoom != room:
		return "", "", errors.New("body room does not match the query room")
	}
	return address, room, nil
}

func sameAddress(a, b string) bool {
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	data, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
