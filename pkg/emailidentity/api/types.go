package api

// RegisterRequest represents the request to register a new account
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// RegisterResponse represents the response after registration
type RegisterResponse struct {
	Message string        `json:"message"`
	UserId  string        `json:"user_id"`
	Email   EmailResponse `json:"email"`
}

// VerifyResponse represents the response after email verification
type VerifyResponse struct {
	Message   string        `json:"message"`
	Activated bool          `json:"account_activated"`
	Email     EmailResponse `json:"email"`
}

// AddEmailRequest represents the request to add an email address
type AddEmailRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name,omitempty"`
}

// ChangeEmailRequest represents the request to replace the account email
type ChangeEmailRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name,omitempty"`
}

// ResendVerificationRequest represents the request to resend a verification email
type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetRequest represents the request to start a password reset
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordResetCompleteRequest represents the request to finish a password reset
type PasswordResetCompleteRequest struct {
	ResetCode   string `json:"reset_code" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// EmailResponse represents one email address on an account
type EmailResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Default  bool   `json:"default"`
}

// MessageResponse represents a plain confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
