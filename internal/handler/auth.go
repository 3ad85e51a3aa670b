package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renft/marketplace/internal/config"
	"github.com/renft/marketplace/internal/repository"
	"github.com/renft/marketplace/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints. An account is a
// rail/registry address plus a password guarding the HTTP session; the
// address becomes the JWT subject and identifies the caller in every
// lifecycle operation.
type AuthHandler struct {
	Cfg      config.Config
	Accounts *repository.AccountRepo
}

func NewAuthHandler(cfg config.Config, a *repository.AccountRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Accounts: a}
}

// ----- DTOs -----

type registerReq struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}
type loginReq struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type authResp struct {
	Address string    `json:"address"`
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Register creates an account and returns an access token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Address = strings.ToLower(strings.TrimSpace(req.Address))
	if req.Address == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "address/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Accounts.Create(ctx, req.Address, req.Password, h.Cfg.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrAccountExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "address already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, req.Address, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusCreated, authResp{Address: req.Address, Token: access.Token, Expires: access.Exp})
}

// Login verifies the password and returns a fresh access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Address = strings.ToLower(strings.TrimSpace(req.Address))
	if req.Address == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "address/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	acct, err := h.Accounts.GetByAddress(ctx, req.Address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !utils.VerifyPassword(acct.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, acct.Address, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, authResp{Address: acct.Address, Token: access.Token, Expires: access.Exp})
}
