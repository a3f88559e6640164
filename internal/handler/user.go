package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sakif/product-registry/internal/apperror"
	"github.com/sakif/product-registry/internal/auth"
	"github.com/sakif/product-registry/internal/model"
	"github.com/sakif/product-registry/internal/repository"
	"github.com/sakif/product-registry/internal/service"
)

// tokenCookie is the cookie RequireAuth falls back to when there is no
// Authorization header.
const tokenCookie = "token"

// UserResponse is the public shape of a user. The password digest never
// leaves the server.
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Nom       string     `json:"nom"`
	Prenom    string     `json:"prenom"`
	Email     string     `json:"email"`
	Telephone string     `json:"telephone"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Nom:       u.Nom,
		Prenom:    u.Prenom,
		Email:     u.Email,
		Telephone: u.Telephone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type registerRequest struct {
	Nom       string `json:"nom" validate:"required,max=255"`
	Prenom    string `json:"prenom" validate:"required,max=255"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Telephone string `json:"telephone" validate:"max=20"`
	Role      string `json:"role" validate:"required,oneof=particulier mairie association"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

type updateUserRequest struct {
	Nom       *string `json:"nom" validate:"omitempty,max=255"`
	Prenom    *string `json:"prenom" validate:"omitempty,max=255"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Telephone *string `json:"telephone" validate:"omitempty,max=20"`
	Role      *string `json:"role" validate:"omitempty,oneof=particulier mairie association"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

// UserHandler manages accounts and the token flow.
//
//   - POST /users/          → register
//   - POST /users/token     → login, returns access + refresh tokens
//   - POST /users/refresh   → new access token from a refresh token
//   - POST /users/logout    → clear the token cookie
//   - GET  /users/me        → the caller's profile (auth)
//   - GET  /users/{id}      → any profile
//   - PUT/DELETE /users/{id} → the caller's own account only (auth)
type UserHandler struct {
	users  *service.AuthService
	logger *slog.Logger
}

func NewUserHandler(users *service.AuthService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// Routes returns the user routes, to be mounted under /users. requireAuth
// guards the routes that act on behalf of the caller.
func (h *UserHandler) Routes(requireAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleRegister)
	r.Post("/token", h.HandleLogin)
	r.Post("/refresh", h.HandleRefresh)
	r.Post("/logout", h.HandleLogout)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", h.HandleMe)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})

	r.Get("/{id}", h.HandleGet)
	return r
}

func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Nom:       req.Nom,
		Prenom:    req.Prenom,
		Email:     req.Email,
		Telephone: req.Telephone,
		Role:      model.Role(req.Role),
		Password:  req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// HandleLogin handles POST /users/token. It accepts either a JSON body
// {"email", "password"} or an OAuth2 password form (username, password).
// The access token is also set as an HttpOnly cookie for browser clients.
func (h *UserHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			writeError(w, apperror.ValidationFailed("body", "invalid form body"))
			return
		}
		req.Email = r.PostForm.Get("username")
		if req.Email == "" {
			req.Email = r.PostForm.Get("email")
		}
		req.Password = r.PostForm.Get("password")
		if err := validateStruct(&req); err != nil {
			writeError(w, err)
			return
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(pair.ExpiresIn.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

func (h *UserHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	access, err := h.users.Refresh(req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, TokenType: "bearer"})
}

// HandleLogout clears the token cookie. Tokens are stateless, so a bearer
// token stays valid until it expires.
func (h *UserHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.users.GetUser(r.Context(), callerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	patch := repository.UserPatch{
		Nom:       req.Nom,
		Prenom:    req.Prenom,
		Email:     req.Email,
		Telephone: req.Telephone,
		Password:  req.Password,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		patch.Role = &role
	}

	user, err := h.users.UpdateUser(r.Context(), callerID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	if err := h.users.DeleteUser(r.Context(), callerID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Utilisateur supprimé avec succès."})
}
