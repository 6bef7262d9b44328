package model

// Request payloads are validated with go-playground/validator tags before any
// service call. The "password" rule is registered by the validation package.

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

// LoginRequest mirrors the OAuth2 password form: the email travels as "username".
type LoginRequest struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ForgotPasswordRequest is deliberately unvalidated: the endpoint answers the
// same way for any input.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateTaskRequest struct {
	Title           string  `json:"title" validate:"required,max=255"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1,max=1440"`
	Importance      *int    `json:"importance" validate:"omitempty,min=1,max=5"`
	Deadline        *string `json:"deadline" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type CreateFeedbackRequest struct {
	Date        string  `json:"date" validate:"required,datetime=2006-01-02"`
	StressLevel int     `json:"stress_level" validate:"required,min=1,max=5"`
	Notes       *string `json:"notes" validate:"omitempty,max=1000"`
}
