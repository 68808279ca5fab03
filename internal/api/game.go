package api

import (
	"net/http"
	"time"

	"github.com/reedfamily/serverkit/internal/game"
)

type GameHandler struct {
	servers Servers
}

func NewGameHandler(servers Servers) *GameHandler {
	return &GameHandler{servers: servers}
}

// Get describes the running server.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	writeJSON(w, http.StatusOK, game.Describe(r.Context(), srv))
}

// Update changes the name, player limit or clock of the server.
func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}

	var req struct {
		Name       *string    `json:"name"`
		MaxPlayers *int       `json:"max_players"`
		Time       *time.Time `json:"time"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			writeError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		srv.SetName(*req.Name)
	}
	if req.MaxPlayers != nil {
		srv.SetMaxPlayers(*req.MaxPlayers)
	}
	if req.Time != nil {
		srv.SetTime(*req.Time)
	}

	writeJSON(w, http.StatusOK, game.Describe(r.Context(), srv))
}

func (h *GameHandler) Save(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	srv.Save()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "save requested"})
}

// Stop asks servers that support it to shut down.
func (h *GameHandler) Stop(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	stopper, ok := srv.(interface{ Stop() })
	if !ok {
		writeError(w, http.StatusNotImplemented, "server can't be stopped remotely")
		return
	}
	stopper.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "stop requested"})
}

func (h *GameHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Message == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}
	srv.Broadcast(req.Message)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "broadcast sent"})
}

// Command runs a console command. Arguments are passed on in order.
func (h *GameHandler) Command(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	var req struct {
		Command string `json:"command"`
		Args    []any  `json:"args"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Command == "" {
		writeError(w, http.StatusBadRequest, "command required")
		return
	}
	srv.Command(req.Command, req.Args...)
	writeJSON(w, http.StatusAccepted, map[string]string{"line": game.FormatCommand(req.Command, req.Args...)})
}
