package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatrelay/internal/auth"
)

// APIHandlers provides the register and login endpoints.
type APIHandlers struct {
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// AuthResponse represents the register and login response body.
type AuthResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	User    *UserResponse `json:"user,omitempty"`
	Token   string        `json:"token,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func failure(c *gin.Context, status int, msg string) {
	c.JSON(status, AuthResponse{Success: false, Message: msg})
}

// Register handles user registration.
// POST /auth/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		failure(c, http.StatusBadRequest, "Missing fields")
		return
	}

	res, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			failure(c, http.StatusBadRequest, "Missing fields")
		case errors.Is(err, auth.ErrUserExists):
			failure(c, http.StatusBadRequest, "Email already exists")
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to register user")
			failure(c, http.StatusInternalServerError, "Server error")
		}
		return
	}

	h.log.Info().Str("email", res.User.Email).Msg("user registered successfully")
	c.JSON(http.StatusOK, authSuccess("User registered!", res))
}

// Login handles user login.
// POST /auth/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		failure(c, http.StatusBadRequest, "Missing fields")
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			failure(c, http.StatusBadRequest, "Missing fields")
		case errors.Is(err, auth.ErrInvalidCredentials):
			failure(c, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
			failure(c, http.StatusInternalServerError, "Server error")
		}
		return
	}

	h.log.Info().Str("email", res.User.Email).Msg("user logged in successfully")
	c.JSON(http.StatusOK, authSuccess("Login successful", res))
}

func authSuccess(msg string, res *auth.Result) AuthResponse {
	return AuthResponse{
		Success: true,
		Message: msg,
		User: &UserResponse{
			ID:       res.User.ID,
			Username: res.User.Username,
			Email:    res.User.Email,
		},
		Token: res.Token,
	}
}
