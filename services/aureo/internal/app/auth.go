package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miquiestampas/Aureo/internal/util"
	"github.com/miquiestampas/Aureo/pkg/auth"
	"github.com/miquiestampas/Aureo/pkg/domain"
)

type userSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

// Login validates credentials and issues a session token.
func (a *App) Login(username, password string) (domain.User, string, error) {
	if a.sessions == nil {
		return domain.User{}, "", errors.New("sessions not configured")
	}
	username = normalizeUsername(username)
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	if a.sessions == nil || strings.TrimSpace(token) == "" {
		return domain.User{}, false
	}
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// Logout invalidates the session token.
func (a *App) Logout(token string) error {
	if a.sessions == nil {
		return nil
	}
	return a.sessions.DeleteSession(token)
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Username string
	Name     string
	Password string
	Role     domain.UserRole
}

// CreateUser adds an account. Only a SuperAdmin may create administrators.
func (a *App) CreateUser(actor domain.User, in NewUser) (domain.User, error) {
	if !actor.Role.IsAdmin() {
		return domain.User{}, ErrForbidden
	}
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if in.Role.IsAdmin() && actor.Role != domain.RoleSuperAdmin {
		return domain.User{}, ErrForbidden
	}
	return a.createUser(in)
}

// EnsureSuperAdmin creates the initial SuperAdmin account. It fails with
// ErrUsernameTaken when the username is already in use.
func (a *App) EnsureSuperAdmin(username, name, password string) (domain.User, error) {
	return a.createUser(NewUser{Username: username, Name: name, Password: password, Role: domain.RoleSuperAdmin})
}

func (a *App) createUser(in NewUser) (domain.User, error) {
	username := normalizeUsername(in.Username)
	if username == "" {
		return domain.User{}, fmt.Errorf("%w: username required", ErrInvalidInput)
	}
	switch in.Role {
	case domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleUser:
	default:
		return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, exists, err := a.store.GetUserByUsername(username); err != nil {
		return domain.User{}, fmt.Errorf("check username: %w", err)
	} else if exists {
		return domain.User{}, ErrUsernameTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := a.now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	slog.Info("user_created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// ListUsers returns all accounts.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// UserUpdate is the input to UpdateUser. Nil fields are left unchanged.
type UserUpdate struct {
	Name     *string
	Role     *domain.UserRole
	Password *string
	// AdminPassword is the acting admin's own password. It is required to
	// change the password of another administrator.
	AdminPassword string
}

// UpdateUser edits an account's name, role or password. Only a SuperAdmin
// may edit a SuperAdmin or hand out administrator roles, and nobody changes
// their own role. A new role or password ends the user's open sessions.
func (a *App) UpdateUser(actor domain.User, id string, in UserUpdate) (domain.User, error) {
	if !actor.Role.IsAdmin() {
		return domain.User{}, ErrForbidden
	}
	target, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if target.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return domain.User{}, ErrForbidden
	}

	roleChanged := false
	if in.Role != nil && *in.Role != target.Role {
		switch *in.Role {
		case domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleUser:
		default:
			return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *in.Role)
		}
		if actor.ID == target.ID {
			return domain.User{}, ErrForbidden
		}
		if (in.Role.IsAdmin() || target.Role.IsAdmin()) && actor.Role != domain.RoleSuperAdmin {
			return domain.User{}, ErrForbidden
		}
		target.Role = *in.Role
		roleChanged = true
	}

	passwordChanged := false
	if in.Password != nil && *in.Password != "" {
		if err := auth.ValidatePassword(*in.Password); err != nil {
			return domain.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if target.Role.IsAdmin() && target.ID != actor.ID {
			if in.AdminPassword == "" {
				return domain.User{}, fmt.Errorf("%w: admin password required", ErrInvalidInput)
			}
			current, ok, err := a.store.GetUserByID(actor.ID)
			if err != nil {
				return domain.User{}, fmt.Errorf("get acting user: %w", err)
			}
			if !ok || !auth.CheckPassword(in.AdminPassword, current.PasswordHash) {
				return domain.User{}, ErrInvalidCredentials
			}
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return domain.User{}, err
		}
		target.PasswordHash = hash
		passwordChanged = true
	}

	if in.Name != nil {
		target.Name = strings.TrimSpace(*in.Name)
	}
	target.UpdatedAt = a.now().UTC()
	if err := a.store.SaveUser(target); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	if roleChanged || passwordChanged {
		if r, ok := a.sessions.(userSessionRevoker); ok {
			if err := r.RevokeUserSessions(target.ID, a.now()); err != nil {
				slog.Warn("revoke_user_sessions_failed", "user_id", target.ID, "err", err)
			}
		}
	}
	slog.Info("user_updated", "user_id", target.ID, "actor_id", actor.ID,
		"role_changed", roleChanged, "password_changed", passwordChanged)
	return target, nil
}

// DeleteUser removes an account and revokes its sessions where the session
// backend supports it.
func (a *App) DeleteUser(actor domain.User, id string) error {
	if !actor.Role.IsAdmin() || actor.ID == id {
		return ErrForbidden
	}
	target, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if target.Role.IsAdmin() && actor.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if r, ok := a.sessions.(userSessionRevoker); ok {
		if err := r.RevokeUserSessions(id, a.now()); err != nil {
			slog.Warn("revoke_user_sessions_failed", "user_id", id, "err", err)
		}
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
