// Package botgate exposes a small localhost HTTP listener through which
// external bots hand responses to the client. Each accepted response lands
// on a typed channel the UI consumes; the queue is bounded and overflow is
// dropped.
package botgate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"parley/internal/validator"
)

const queueSize = 64

type Response struct {
	ChannelID int64  `json:"channelID,string"`
	Content   string `json:"content"`
}

type Gate struct {
	sugar     *zap.SugaredLogger
	responses chan Response
	server    *http.Server
}

func New(address string, sugar *zap.SugaredLogger) *Gate {
	g := &Gate{
		sugar:     sugar,
		responses: make(chan Response, queueSize),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/ping", g.handlePing)
	r.Post("/bot/response", g.handleResponse)

	g.server = &http.Server{Addr: address, Handler: r}
	return g
}

// Start serves until Close. It blocks, run it on its own goroutine.
func (g *Gate) Start() error {
	err := g.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Responses is the typed channel accepted bot responses arrive on.
func (g *Gate) Responses() <-chan Response {
	return g.responses
}

func (g *Gate) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := g.server.Shutdown(ctx)
	close(g.responses)
	return err
}

func (g *Gate) handlePing(w http.ResponseWriter, r *http.Request) {
	_, err := w.Write([]byte("pong"))
	if err != nil {
		g.sugar.Error(err)
	}
}

func (g *Gate) handleResponse(w http.ResponseWriter, r *http.Request) {
	var response Response
	err := json.NewDecoder(r.Body).Decode(&response)
	if err != nil {
		g.sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	if response.ChannelID == 0 {
		http.Error(w, "Invalid channel ID", http.StatusBadRequest)
		return
	}

	err = validator.MessageContent(response.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case g.responses <- response:
		w.WriteHeader(http.StatusAccepted)
	default:
		g.sugar.Warnf("Dropping bot response for channel %d, queue is full", response.ChannelID)
		http.Error(w, "", http.StatusTooManyRequests)
	}
}
