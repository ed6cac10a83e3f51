package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"kinarow/game"
	"kinarow/metrics"

	"github.com/rs/zerolog/log"
)

// Client is an agent asking a remote server for its moves
type Client struct {
	serverURL string
	game      game.KInARow
	episodes  int
	http      *http.Client
}

// NewClient returns a client for the server at serverURL. A positive
// episodes overrides the server's episode cap on every request.
func NewClient(serverURL string, g game.KInARow, episodes int) *Client {
	return &Client{
		serverURL: serverURL,
		game:      g,
		episodes:  episodes,
		http:      &http.Client{},
	}
}

func (c *Client) FindMove(ctx context.Context, state game.State) (game.Move, metrics.SearchMetric, bool) {
	resp, err := c.Request(ctx, state)
	if err != nil {
		log.Warn().Err(err).Msg("remote search failed")
		return state.Move, metrics.SearchMetric{}, false
	}
	metric := metrics.SearchMetric{Episodes: resp.Episodes}
	if d, err := time.ParseDuration(resp.Duration); err == nil {
		metric.Duration = d
	}
	return resp.Move, metric, resp.OK
}

// Request posts state to the server and returns its decoded answer
func (c *Client) Request(ctx context.Context, state game.State) (*FindMoveResponse, error) {
	data, err := json.Marshal(FindMoveRequest{
		H:        c.game.H,
		V:        c.game.V,
		K:        c.game.K(),
		ToMove:   state.ToMove,
		Board:    state.Board,
		Episodes: c.episodes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/findmove", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", c.serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("server answered %d: %s", resp.StatusCode, body.Error)
	}

	var move FindMoveResponse
	if err := json.NewDecoder(resp.Body).Decode(&move); err != nil {
		return nil, fmt.Errorf("failed to decode move: %w", err)
	}
	return &move, nil
}
