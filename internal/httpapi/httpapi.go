// Package httpapi serves account registration and sign-in plus the static
// client bundle. Sign-in sets the cookie pair the websocket handshake
// authenticates with.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lower-elements/example-web-game/internal/userdir"
)

type API struct {
	log       *zap.Logger
	users     userdir.Directory
	staticDir string
}

func New(log *zap.Logger, users userdir.Directory, staticDir string) *API {
	return &API{log: log, users: users, staticDir: staticDir}
}

// Mount registers all routes on the mux.
func (a *API) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /signup", a.handleSignup)
	mux.HandleFunc("POST /signin", a.handleSignin)
	mux.HandleFunc("GET /health", a.handleHealth)
	if a.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(a.staticDir)))
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email, username and password are required"})
		return
	}

	acc, err := a.users.Insert(r.Context(), req.Email, req.Username, req.Password)
	if errors.Is(err, userdir.ErrDuplicate) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "email or username already registered"})
		return
	}
	if err != nil {
		a.log.Error("signup failed", zap.String("email", req.Email), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	a.log.Info("account created", zap.String("username", acc.Username))
	writeJSON(w, http.StatusCreated, map[string]string{"username": acc.Username})
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	acc, err := a.users.FindByEmailAndPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		a.log.Error("signin lookup failed", zap.String("email", req.Email), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if acc == nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		return
	}

	// The websocket handshake reads these back; they are the session ticket.
	http.SetCookie(w, &http.Cookie{Name: "email", Value: userdir.Normalize(req.Email), Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "password", Value: req.Password, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"username": acc.Username})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
