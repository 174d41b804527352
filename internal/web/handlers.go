// Package web provides the HTTP surface: credential endpoints and the
// websocket entry point.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/scrawl-game/scrawl/internal/storage/postgres"
)

// UserStore defines the user persistence operations required by AuthHandler.
type UserStore interface {
	Create(ctx context.Context, email, password string) (postgres.User, error)
	Authenticate(ctx context.Context, email, password string) (postgres.User, error)
}

// AuthHandler serves the signup and login endpoints. The game never calls
// it; clients obtain a player identity here before opening a websocket.
type AuthHandler struct {
	users  UserStore
	logger *zap.Logger
}

// NewAuthHandler creates an AuthHandler backed by the given user store.
//
// Precondition: users and logger must be non-nil.
func NewAuthHandler(users UserStore, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		logger: logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "email and password are required"})
		return
	}

	u, err := h.users.Create(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, postgres.ErrUserExists) {
			writeJSON(w, http.StatusBadRequest, authResponse{Message: "email already taken"})
			return
		}
		h.logger.Error("creating user", zap.String("email", req.Email), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "could not create user"})
		return
	}

	h.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("email", u.Email))
	writeJSON(w, http.StatusCreated, authResponse{Success: true, UserID: u.ID})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, authResponse{Message: "email and password are required"})
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) || errors.Is(err, postgres.ErrInvalidCredentials) {
			// Identical response either way, so the endpoint doesn't
			// confirm which emails are registered.
			writeJSON(w, http.StatusBadRequest, authResponse{Message: "invalid email or password"})
			return
		}
		h.logger.Error("authenticating user", zap.String("email", req.Email), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, authResponse{Message: "server error"})
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, UserID: u.ID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewRouter assembles the HTTP routes: credential endpoints and the
// websocket upgrade path.
//
// Precondition: auth must be non-nil; ws must be a non-nil handler for
// websocket upgrades.
func NewRouter(auth *AuthHandler, ws http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()

	r.Use(corsMiddleware)

	r.HandleFunc("/api/auth/signup", auth.Signup).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/auth/login", auth.Login).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws", ws)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		// Websocket upgrades skip further CORS handling.
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
