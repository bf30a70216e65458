package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmarket/vmarket/internal/domain"
)

type recordSender struct {
	name     string
	titles   []string
	messages []string
	err      error
}

func (s *recordSender) Send(_ context.Context, title, message string) error {
	s.titles = append(s.titles, title)
	s.messages = append(s.messages, message)
	return s.err
}

func (s *recordSender) Name() string { return s.name }

func discard() *slog.Logger { return slog.New(slog.NewJSONHandler(io.Discard, nil)) }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventResolveRun}, discard())
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, EventCreateRun, "t", "m"))
	assert.Empty(t, s.titles)

	require.NoError(t, n.Notify(ctx, EventResolveRun, "t", "m"))
	assert.Equal(t, []string{"t"}, s.titles)
}

func TestNotifyContinuesAfterSenderError(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("down")}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.titles, 1)
}

func TestResolveRunSummary(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, discard())

	r := domain.ResolveReport{
		Room: "vesta",
		Date: civil.Date{Year: 2025, Month: time.January, Day: 15},
		Items: []domain.ItemResult{
			{MarketID: 1, GameID: "a", Status: domain.ItemResolved},
			{MarketID: 2, GameID: "b", Status: domain.ItemFailed, Reason: "derive outcome: draw not offered"},
			{MarketID: 3, Status: domain.ItemSkipped},
		},
	}
	require.NoError(t, n.ResolveRun(context.Background(), r))
	require.Len(t, s.titles, 1)
	assert.Equal(t, "Markets resolved: all leagues 2025-01-15 (vesta)", s.titles[0])
	assert.True(t, strings.HasPrefix(s.messages[0], "resolved 1, skipped 1, failed 1"))
	assert.Contains(t, s.messages[0], "market 2 (game b): derive outcome: draw not offered")
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.SetBaseURL(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 404")
}
