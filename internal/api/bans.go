package api

import (
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/reedfamily/serverkit/internal/game"
)

type BanHandler struct {
	servers Servers
	lister  game.BanLister
}

// NewBanHandler returns a BanHandler. lister may be nil if bans can't be enumerated.
func NewBanHandler(servers Servers, lister game.BanLister) *BanHandler {
	return &BanHandler{servers: servers, lister: lister}
}

type banResponse struct {
	Subject   string `json:"subject"`
	Banned    bool   `json:"banned"`
	Permanent bool   `json:"permanent"`
	Remaining int64  `json:"remaining_seconds,omitempty"`
}

func (h *BanHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.lister == nil {
		writeError(w, http.StatusNotImplemented, "ban list not available")
		return
	}
	entries, err := h.lister.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list bans")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *BanHandler) Get(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	id := chi.URLParam(r, "id")

	left, err := srv.BanTimeRemaining(id)
	if err != nil {
		writeGameError(w, err)
		return
	}
	resp := banResponse{Subject: id, Banned: true, Permanent: left == game.Forever}
	if !resp.Permanent {
		resp.Remaining = int64(math.Ceil(left.Seconds()))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Put bans the subject. An empty duration bans permanently.
func (h *BanHandler) Put(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	id := chi.URLParam(r, "id")

	var req struct {
		Reason   string `json:"reason"`
		Duration string `json:"duration"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var d time.Duration
	if req.Duration != "" {
		var err error
		if d, err = time.ParseDuration(req.Duration); err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration: use format like 30m, 24h")
			return
		}
	}

	if err := srv.Ban(id, req.Reason, d); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "banned"})
}

func (h *BanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	srv := h.servers.get(w)
	if srv == nil {
		return
	}
	if err := srv.Unban(chi.URLParam(r, "id")); err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "unbanned"})
}
