package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/tendant/simple-emailauth/pkg/login"
)

var validate = validator.New()

// Handler exposes the login service over HTTP
type Handler struct {
	service *login.LoginService
	tokens  *login.TokenService
}

// NewHandler creates a new login API handler
func NewHandler(service *login.LoginService, tokens *login.TokenService) *Handler {
	return &Handler{
		service: service,
		tokens:  tokens,
	}
}

// Routes mounts the login endpoint
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.Login)
}

// Login handles POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := validate.Struct(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Identifier and password are required"})
		return
	}

	account, err := h.service.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, login.ErrInvalidCredentials) {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, ErrorResponse{Error: "Invalid credentials"})
			return
		}
		slog.Error("Failed to authenticate", "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An internal error occurred"})
		return
	}

	token, err := h.tokens.IssueToken(account.ID)
	if err != nil {
		slog.Error("Failed to issue token", "user_id", account.ID, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "An internal error occurred"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.Expiry().Seconds()),
		UserId:      account.ID.String(),
	})
}
