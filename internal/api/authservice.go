package api

import (
	"context"
	"errors"

	"ipal-monitor/internal/auth"
	"ipal-monitor/internal/models"

	"go.uber.org/zap"
)

// ErrEmailNotFound is returned by CheckEmail for an unknown account.
var ErrEmailNotFound = errors.New("no account found with this email address")

// LoginResponse is the /auth/login payload.
type LoginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// AuthService logs in and out.
type AuthService struct {
	c *Client
}

// NewAuthService creates the service.
func NewAuthService(c *Client) *AuthService {
	return &AuthService{c: c}
}

// Login authenticates and installs the token in the client's session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}

	var out LoginResponse
	if err := s.c.Post(ctx, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, errors.New("login response carries no token")
	}

	s.c.session.Login(out.Token, out.User)
	if out.User != nil {
		s.c.logger.Info("Login successful",
			zap.String("uid", out.User.UID),
			zap.String("role", out.User.Role),
		)
	}
	return &out, nil
}

// Logout ends the session.
func (s *AuthService) Logout() {
	s.c.session.Revoke(auth.ErrLoggedOut)
}

// CheckEmail returns ErrEmailNotFound unless the backend knows email.
func (s *AuthService) CheckEmail(ctx context.Context, email string) error {
	var out struct {
		Success bool  `json:"success"`
		Exists  *bool `json:"exists"`
	}
	if err := s.c.Post(ctx, "/auth/check-email", map[string]string{"email": email}, &out); err != nil {
		return err
	}
	if out.Exists == nil || !*out.Exists {
		return ErrEmailNotFound
	}
	return nil
}
