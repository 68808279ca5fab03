// Package api serves the HTTP administration API of the active game server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/reedfamily/serverkit/internal/game"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into v. Numbers in untyped fields keep their literal text.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	return dec.Decode(v)
}

// writeGameError maps errors of game.Server administration calls to a response.
func writeGameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrInvalidIdentity), errors.Is(err, game.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrNotFound), errors.Is(err, game.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Servers returns the server the API operates on, or nil if none is running.
type Servers func() game.Server

func (s Servers) get(w http.ResponseWriter) game.Server {
	var srv game.Server
	if s != nil {
		srv = s()
	}
	if srv == nil {
		writeError(w, http.StatusServiceUnavailable, "no game server running")
	}
	return srv
}
