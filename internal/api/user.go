package api

import (
	"context"
	"net/url"

	"ipal-monitor/internal/models"
)

// RoleAdmin is the only role that can be created through the API.
const RoleAdmin = "admin"

// NewUser is the payload for creating an admin account.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserService manages admin accounts.
type UserService struct {
	c *Client
}

// NewUserService creates the service.
func NewUserService(c *Client) *UserService {
	return &UserService{c: c}
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	if _, err := s.c.getData(ctx, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Create adds an admin; the role is always forced to admin.
func (s *UserService) Create(ctx context.Context, u NewUser) error {
	u.Role = RoleAdmin
	return s.c.Post(ctx, "/api/users", u, nil)
}

// Profile returns the caller's own profile.
func (s *UserService) Profile(ctx context.Context) (*models.User, error) {
	var u models.User
	if _, err := s.c.getData(ctx, "/api/users/profile", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile changes the caller's own profile.
func (s *UserService) UpdateProfile(ctx context.Context, fields map[string]any) error {
	return s.c.Put(ctx, "/api/users/profile", fields, nil)
}

// Update changes another user.
func (s *UserService) Update(ctx context.Context, uid string, fields map[string]any) error {
	return s.c.Put(ctx, "/api/users/"+url.PathEscape(uid), fields, nil)
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, uid string) error {
	return s.c.Delete(ctx, "/api/users/"+url.PathEscape(uid), nil)
}

// ResetPassword sets a new password for uid.
func (s *UserService) ResetPassword(ctx context.Context, uid, newPassword string) error {
	body := map[string]string{"newPassword": newPassword}
	return s.c.Post(ctx, "/api/users/"+url.PathEscape(uid)+"/reset-password", body, nil)
}
