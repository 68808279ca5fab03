package api

import (
	"net/http"

	"github.com/reedfamily/serverkit/internal/chat"
)

type ChatHandler struct {
	hub *chat.Hub
}

func NewChatHandler(hub *chat.Hub) *ChatHandler {
	return &ChatHandler{hub: hub}
}

// Handle joins the operator to the chat relay over a websocket.
func (h *ChatHandler) Handle(w http.ResponseWriter, r *http.Request) {
	name := "operator"
	if op := operatorFrom(r); op != nil {
		name = op.Username
	}
	h.hub.Serve(w, r, name)
}
