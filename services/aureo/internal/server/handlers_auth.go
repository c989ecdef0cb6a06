package server

import (
	"net/http"

	"github.com/miquiestampas/Aureo/pkg/domain"
	"github.com/miquiestampas/Aureo/services/aureo/internal/app"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "login", "rate_limited")
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		s.audit(r, "login", "fail", "reason", "invalid_json")
		return
	}
	user, token, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		s.audit(r, "login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "logout", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Username string          `json:"username"`
	Name     string          `json:"name"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, actor domain.User) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.CreateUser(actor, app.NewUser{
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		s.audit(r, "user.create", "fail", "user_id", actor.ID, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.create", "success", "user_id", actor.ID, "target_user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

type updateUserRequest struct {
	Name          *string          `json:"name"`
	Role          *domain.UserRole `json:"role"`
	Password      *string          `json:"password"`
	AdminPassword string           `json:"adminPassword"`
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, actor domain.User) {
	id := r.PathValue("id")
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.UpdateUser(actor, id, app.UserUpdate{
		Name:          req.Name,
		Role:          req.Role,
		Password:      req.Password,
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		s.audit(r, "user.update", "fail", "user_id", actor.ID, "target_user_id", id, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.update", "success", "user_id", actor.ID, "target_user_id", id, "role", user.Role)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request, actor domain.User) {
	id := r.PathValue("id")
	if err := s.app.DeleteUser(actor, id); err != nil {
		s.audit(r, "user.delete", "fail", "user_id", actor.ID, "target_user_id", id, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.delete", "success", "user_id", actor.ID, "target_user_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
