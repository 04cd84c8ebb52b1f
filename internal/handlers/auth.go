package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/auth"
	"taskboard/internal/model"
	"taskboard/internal/service"
)

type AuthHandler struct {
	users  *service.UserService
	tokens *auth.Tokens
	logger *slog.Logger
}

func NewAuthHandler(users *service.UserService, tokens *auth.Tokens, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type tokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminSummary struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AdminType string `json:"adminType"`
}

type userSummary struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var in service.SignupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := h.users.Signup(c.Request.Context(), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.respondToken(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if service.Kind(err) == "unauthorized" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid credentials",
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	h.respondToken(c, http.StatusOK, user)
}

func (h *AuthHandler) ListAdmins(c *gin.Context) {
	admins, err := h.users.ListAdmins(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	out := make([]adminSummary, 0, len(admins))
	for _, a := range admins {
		out = append(out, adminSummary{ID: a.ID, Name: a.Name, AdminType: a.AdminType})
	}
	c.JSON(http.StatusOK, gin.H{"admins": out})
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	users, err := h.users.ListUsersUnderAdmin(c.Request.Context(), a)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

func (h *AuthHandler) TelegramLinkCode(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	code, err := h.users.IssueLinkCode(c.Request.Context(), a)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":        code,
		"instruction": "send /link " + code + " to the bot",
	})
}

func (h *AuthHandler) respondToken(c *gin.Context, status int, user *model.User) {
	token, exp, err := h.tokens.Issue(user)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(status, tokenResponse{Token: token, ExpiresAt: exp, User: user})
}
