package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kinarow/game"
	"kinarow/searcher"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type FindMoveRequest struct {
	H        int         `json:"h"`
	V        int         `json:"v"`
	K        int         `json:"k"`
	ToMove   game.Player `json:"to_move"`
	Board    game.Board  `json:"board"`
	Episodes int         `json:"episodes,omitempty"` // Overrides the server's episode cap
}

type FindMoveResponse struct {
	Move     game.Move         `json:"move"`
	OK       bool              `json:"ok"`
	Policy   map[game.Move]int `json:"policy"`
	Episodes int               `json:"episodes"`
	Duration string            `json:"duration"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	options []searcher.Option
}

// New returns a server building one search per request from options
func New(options ...searcher.Option) *Server {
	return &Server{options: options}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/findmove", s.handleFindMove)
	return r
}

// ListenAndServe serves on addr until ctx is done
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Msgf("server is running on %s", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFindMove(w http.ResponseWriter, r *http.Request) {
	var payload FindMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad request: "+err.Error())
		return
	}

	g, err := game.NewKInARow(payload.H, payload.V, payload.K)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	state, err := g.FromBoard(payload.Board, payload.ToMove)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if g.TerminalTest(state) {
		writeError(w, http.StatusConflict, "game is already decided")
		return
	}

	options := s.options
	if payload.Episodes > 0 {
		options = append(options[:len(options):len(options)], searcher.WithEpisodes(payload.Episodes))
	}
	options = append(options[:len(options):len(options)], searcher.WithMetrics())
	mcts := searcher.NewMCTS(g, options...)

	move, metric, ok := mcts.DecideMove(r.Context(), state)
	writeJSON(w, http.StatusOK, FindMoveResponse{
		Move:     move,
		OK:       ok,
		Policy:   mcts.Policy(),
		Episodes: metric.Episodes,
		Duration: metric.Duration.String(),
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("handled request")
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
