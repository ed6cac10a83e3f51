package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kinarow/game"
	"kinarow/searcher"

	"github.com/stretchr/testify/require"
)

func post(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/findmove", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFindMove(t *testing.T) {
	handler := New(searcher.WithEpisodes(500), searcher.WithSeed(1)).Router()

	t.Run("takes the immediate win", func(t *testing.T) {
		rec := post(t, handler, `{"h":3,"v":3,"k":3,"to_move":"X","board":{"1,1":"X","2,1":"O","1,2":"X","2,2":"O"},"episodes":2000}`)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp FindMoveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.OK)
		require.Equal(t, game.Move{X: 1, Y: 3}, resp.Move)
		require.Equal(t, 2000, resp.Episodes, "Request should override the episode cap")

		total := 0
		for _, visits := range resp.Policy {
			total += visits
		}
		require.Equal(t, 2000, total)
		require.Len(t, resp.Policy, 5, "Every empty cell should be a root child")
	})

	t.Run("uses the server budget by default", func(t *testing.T) {
		rec := post(t, handler, `{"h":3,"v":3,"k":3,"to_move":"X","board":{}}`)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp FindMoveResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, 500, resp.Episodes)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		rec := post(t, handler, `{"h":`)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid boards", func(t *testing.T) {
		rec := post(t, handler, `{"h":3,"v":3,"k":7,"to_move":"X","board":{}}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = post(t, handler, `{"h":3,"v":3,"k":3,"to_move":"X","board":{"9,9":"X"}}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = post(t, handler, `{"h":3,"v":3,"k":3,"to_move":"Z","board":{}}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = post(t, handler, `{"h":3,"v":3,"k":3,"to_move":"X","board":{"1,1":"X","2,2":"X"}}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "Mark counts that no game can reach should be rejected")
	})

	t.Run("rejects decided games", func(t *testing.T) {
		rec := post(t, handler, `{"h":3,"v":3,"k":3,"to_move":"O","board":{"1,1":"X","2,1":"O","1,2":"X","2,2":"O","1,3":"X"}}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Error)
	})
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	New().Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListenAndServe(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- New(searcher.WithEpisodes(10)).ListenAndServe(ctx, addr)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errs:
		require.NoError(t, err, "Shutdown should be graceful")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestClient(t *testing.T) {
	g := game.NewTicTacToe()
	ts := httptest.NewServer(New(searcher.WithEpisodes(200), searcher.WithSeed(1)).Router())
	defer ts.Close()

	t.Run("plays the server's move", func(t *testing.T) {
		s := g.Initial()
		for _, m := range []game.Move{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}} {
			s = g.Result(s, m)
		}
		c := NewClient(ts.URL, g, 2000)

		move, metric, ok := c.FindMove(context.Background(), s)

		require.True(t, ok)
		require.Equal(t, game.Move{X: 1, Y: 3}, move)
		require.Equal(t, 2000, metric.Episodes)
		require.True(t, metric.Duration > 0, "Search duration should be reported")
	})

	t.Run("reports server errors", func(t *testing.T) {
		s := g.Initial()
		for _, m := range []game.Move{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}, {X: 1, Y: 3}} {
			s = g.Result(s, m)
		}
		c := NewClient(ts.URL, g, 0)

		_, err := c.Request(context.Background(), s)
		require.ErrorContains(t, err, "409")

		_, _, ok := c.FindMove(context.Background(), s)
		require.False(t, ok)
	})

	t.Run("unreachable server", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", g, 0)

		_, _, ok := c.FindMove(context.Background(), g.Initial())

		require.False(t, ok)
	})
}
