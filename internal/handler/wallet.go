package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/renft/marketplace/internal/assets"
	"github.com/renft/marketplace/internal/funds"
	"github.com/renft/marketplace/internal/model"
)

// WalletHandler exposes the caller-facing side of the two external
// adapters: granting/revoking the market's blanket transfer approval,
// checking balances, and — when dev endpoints are enabled — seeding the
// ledgers with minted assets and faucet funds.
type WalletHandler struct {
	Ledger   *assets.Ledger
	Bank     *funds.Bank
	Operator model.Account
	Dev      bool
}

func NewWalletHandler(ledger *assets.Ledger, bank *funds.Bank, operator model.Account, dev bool) *WalletHandler {
	if ledger == nil || bank == nil {
		panic("nil ledger or bank passed to NewWalletHandler")
	}
	return &WalletHandler{Ledger: ledger, Bank: bank, Operator: operator, Dev: dev}
}

type approvalReq struct {
	Approved bool `json:"approved"`
}

// SetApproval handles PUT /v1/approvals. It grants or revokes the market
// operator's blanket transfer approval over every asset the caller owns.
// Listing requires the approval; revoking it while listed causes the next
// lease attempt to auto-delist.
func (h *WalletHandler) SetApproval(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req approvalReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	h.Ledger.SetApprovalForAll(acct, h.Operator, req.Approved)
	return c.JSON(http.StatusOK, echo.Map{"account": acct, "approved": req.Approved})
}

// GetApproval handles GET /v1/approvals, reporting whether the caller has
// granted the market operator a blanket approval.
func (h *WalletHandler) GetApproval(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ok, err := h.Ledger.IsApprovedForAll(c.Request().Context(), acct, h.Operator)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registry error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"account": acct, "approved": ok})
}

// Balance handles GET /v1/balance, reporting the caller's rail balance.
func (h *WalletHandler) Balance(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, echo.Map{"account": acct, "balance": h.Bank.Balance(acct)})
}

type mintReq struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"token_id"`
}

// Mint handles POST /v1/dev/mint, registering a new asset under the
// caller. Only available when dev endpoints are enabled.
func (h *WalletHandler) Mint(c echo.Context) error {
	if !h.Dev {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req mintReq
	if err := c.Bind(&req); err != nil || req.Collection == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Ledger.Mint(req.Collection, req.TokenID, acct); err != nil {
		if errors.Is(err, assets.ErrAssetExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "asset already minted"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "mint failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"collection": req.Collection, "token_id": req.TokenID, "owner": acct})
}

type faucetReq struct {
	Amount uint64 `json:"amount"`
}

// Faucet handles POST /v1/dev/faucet, crediting the caller's rail balance.
// Only available when dev endpoints are enabled.
func (h *WalletHandler) Faucet(c echo.Context) error {
	if !h.Dev {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req faucetReq
	if err := c.Bind(&req); err != nil || req.Amount == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}
	h.Bank.Deposit(acct, req.Amount)
	return c.JSON(http.StatusOK, echo.Map{"account": acct, "balance": h.Bank.Balance(acct)})
}
