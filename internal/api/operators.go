package api

import (
	"errors"
	"net/http"

	"github.com/reedfamily/serverkit/internal/auth"
)

// OperatorHandler serves operator sessions and accounts.
type OperatorHandler struct {
	auth *auth.Service
}

func NewOperatorHandler(authSvc *auth.Service) *OperatorHandler {
	return &OperatorHandler{auth: authSvc}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var c credentials
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return c, false
	}
	if c.Username == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return c, false
	}
	return c, true
}

type loginResponse struct {
	Token    string         `json:"token"`
	Operator *auth.Operator `json:"operator"`
}

// Login opens a session and returns its bearer token with the operator it belongs to.
func (h *OperatorHandler) Login(w http.ResponseWriter, r *http.Request) {
	c, ok := readCredentials(w, r)
	if !ok {
		return
	}
	token, err := h.auth.Login(c.Username, c.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	op, err := h.auth.ValidateSession(token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Operator: op})
}

// Logout ends the session of the request.
func (h *OperatorHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(bearerToken(r)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *OperatorHandler) Me(w http.ResponseWriter, r *http.Request) {
	op := operatorFrom(r)
	if op == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, op)
}

// Create adds another operator account. Any operator may add one.
func (h *OperatorHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := readCredentials(w, r)
	if !ok {
		return
	}
	op, err := h.auth.CreateOperator(c.Username, c.Password)
	switch {
	case errors.Is(err, auth.ErrOperatorExists):
		writeError(w, http.StatusConflict, "operator already exists")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to create operator")
	default:
		writeJSON(w, http.StatusCreated, op)
	}
}
