package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-emailauth/pkg/emailidentity"
	apperrors "github.com/tendant/simple-emailauth/pkg/errors"
)

var validate = validator.New()

// Handler exposes the email identity service over HTTP
type Handler struct {
	service *emailidentity.EmailIdentityService
}

// NewHandler creates a new email identity API handler
func NewHandler(service *emailidentity.EmailIdentityService) *Handler {
	return &Handler{
		service: service,
	}
}

// Routes mounts the public endpoints
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/verify/{key}", h.Verify)
	r.Post("/resend", h.ResendVerification)
	r.Post("/password/reset", h.RequestPasswordReset)
	r.Post("/password/reset/complete", h.CompletePasswordReset)
}

// ProtectedRoutes mounts the account-scoped endpoints. Callers must wrap
// these with the jwtauth middleware.
func (h *Handler) ProtectedRoutes(r chi.Router) {
	r.Get("/emails", h.ListEmails)
	r.Post("/emails", h.AddEmail)
	r.Post("/emails/change", h.ChangeEmail)
	r.Delete("/emails/{emailID}", h.DeleteEmail)
	r.Post("/emails/{emailID}/default", h.SetDefaultEmail)
}

// Register handles POST /register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), req.ToParams())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{
		Message: "Registered. Check your email for the verification link",
		UserId:  result.Account.ID.String(),
		Email:   toEmailResponse(result.Email),
	})
}

// Verify handles GET /verify/{key}
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Verification key is required"})
		return
	}

	result, err := h.service.Verify(r.Context(), key)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, VerifyResponse{
		Message:   "Email verified successfully",
		Activated: result.Activated,
		Email:     toEmailResponse(result.Email),
	})
}

// ResendVerification handles POST /resend
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email, ""); err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Verification email sent"})
}

// RequestPasswordReset handles POST /password/reset
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, emailidentity.ErrUnknownEmail) {
		respondServiceError(w, r, err)
		return
	}

	// An unknown address gets the same answer as a known one so the endpoint
	// cannot be used to probe which emails exist.
	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "If the address is known, a reset email has been sent"})
}

// CompletePasswordReset handles POST /password/reset/complete
func (h *Handler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetCompleteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.service.ResetPassword(r.Context(), req.ResetCode, req.NewPassword); err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Password has been reset"})
}

// ListEmails handles GET /emails
func (h *Handler) ListEmails(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromToken(w, r)
	if !ok {
		return
	}

	emails, err := h.service.ListEmails(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response := make([]EmailResponse, 0, len(emails))
	for _, e := range emails {
		response = append(response, toEmailResponse(e))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// AddEmail handles POST /emails
func (h *Handler) AddEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromToken(w, r)
	if !ok {
		return
	}

	var req AddEmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email, err := h.service.AddEmail(r.Context(), userID, req.Email, req.FirstName)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toEmailResponse(email))
}

// ChangeEmail handles POST /emails/change
func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromToken(w, r)
	if !ok {
		return
	}

	var req ChangeEmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email, err := h.service.ChangeEmail(r.Context(), userID, req.Email, req.FirstName)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toEmailResponse(email))
}

// DeleteEmail handles DELETE /emails/{emailID}
func (h *Handler) DeleteEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromToken(w, r)
	if !ok {
		return
	}

	emailID, err := uuid.Parse(chi.URLParam(r, "emailID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid email id"})
		return
	}

	if err := h.service.DeleteEmail(r.Context(), userID, emailID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Email deleted"})
}

// SetDefaultEmail handles POST /emails/{emailID}/default
func (h *Handler) SetDefaultEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromToken(w, r)
	if !ok {
		return
	}

	emailID, err := uuid.Parse(chi.URLParam(r, "emailID"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid email id"})
		return
	}

	if err := h.service.SetDefaultEmail(r.Context(), userID, emailID); err != nil {
		respondServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "Default email updated"})
}

// ToParams converts the request into service parameters
func (req RegisterRequest) ToParams() emailidentity.RegisterParams {
	var params emailidentity.RegisterParams
	if err := copier.Copy(&params, &req); err != nil {
		// Field sets match; a copy failure here is a programming error.
		slog.Error("Failed to map register request", "error", err)
	}
	return params
}

func toEmailResponse(e emailidentity.UserEmail) EmailResponse {
	var resp EmailResponse
	if err := copier.Copy(&resp, &e); err != nil {
		slog.Error("Failed to map email response", "error", err)
	}
	resp.ID = e.ID.String()
	return resp
}

// decodeAndValidate decodes the JSON body and runs struct validation. On
// failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return false
	}

	if err := validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Validation failed: " + err.Error()})
		return false
	}

	return true
}

// userIDFromToken extracts the user ID from the JWT claims set by the
// jwtauth middleware. On failure it writes the error response and returns
// false.
func userIDFromToken(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		slog.Error("Failed to get JWT claims from context", "error", err)
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, false
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok || userIDStr == "" {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, false
	}

	return userID, true
}

// respondServiceError maps service errors onto the error-code taxonomy and
// writes the matching HTTP status.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error

	switch {
	case errors.Is(err, emailidentity.ErrDuplicateEmail):
		appErr = apperrors.New(apperrors.ErrCodeDuplicateEmail, "Email address already taken")
	case errors.Is(err, emailidentity.ErrTokenNotFound):
		appErr = apperrors.New(apperrors.ErrCodeTokenNotFound, "Invalid or expired key")
	case errors.Is(err, emailidentity.ErrUnknownEmail):
		appErr = apperrors.New(apperrors.ErrCodeUnknownEmail, "Unknown email address")
	case errors.Is(err, emailidentity.ErrNotVerified):
		appErr = apperrors.New(apperrors.ErrCodeEmailNotVerified, "Email address not verified")
	case errors.Is(err, emailidentity.ErrAlreadyVerified):
		appErr = apperrors.New(apperrors.ErrCodeConflict, "Email is already verified")
	case errors.Is(err, emailidentity.ErrLastVerifiedEmail):
		appErr = apperrors.New(apperrors.ErrCodeLastVerifiedEmail, "Cannot delete the last verified email")
	case errors.Is(err, emailidentity.ErrEmailNotFound):
		appErr = apperrors.New(apperrors.ErrCodeNotFound, "Email not found")
	case errors.Is(err, emailidentity.ErrAccountNotFound):
		appErr = apperrors.New(apperrors.ErrCodeNotFound, "Account not found")
	case errors.Is(err, emailidentity.ErrInvalidMode):
		appErr = apperrors.New(apperrors.ErrCodeInvalidInput, "Operation not available in this email mode")
	default:
		slog.Error("Unexpected service error", "error", err)
		appErr = apperrors.New(apperrors.ErrCodeInternal, "An internal error occurred")
	}

	render.Status(r, appErr.HTTPStatusCode())
	render.JSON(w, r, ErrorResponse{Error: appErr.Message})
}
