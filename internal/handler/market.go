package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renft/marketplace/internal/engine"
	"github.com/renft/marketplace/internal/model"
	"github.com/renft/marketplace/internal/repository"
	queue_publisher "github.com/renft/marketplace/internal/service"
)

// MarketHandler exposes the five lifecycle operations. All methods assume
// JWT authentication has run and read the caller's account address from the
// context. Every successful transition is fanned out to the message broker;
// publish failures never affect the response because the transition has
// already committed and been journaled by the engine.
type MarketHandler struct {
	Engine  *engine.Engine
	Publish func(ctx context.Context, ev model.LeaseEvent) error // nil disables fan-out
}

// NewMarketHandler constructs a MarketHandler wired to the RabbitMQ
// publisher.
func NewMarketHandler(eng *engine.Engine) *MarketHandler {
	if eng == nil {
		panic("nil engine passed to NewMarketHandler")
	}
	return &MarketHandler{Engine: eng, Publish: queue_publisher.PublishTransition}
}

func caller(c echo.Context) (model.Account, error) {
	if v, ok := c.Get("account").(string); ok && v != "" {
		return model.Account(v), nil
	}
	return "", echo.ErrUnauthorized
}

func listingID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// lifecycleError maps engine sentinels to HTTP responses. Unknown errors
// become 500s without leaking adapter details.
func lifecycleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidCollateral),
		errors.Is(err, engine.ErrInvalidRental),
		errors.Is(err, engine.ErrTermOutOfRange),
		errors.Is(err, engine.ErrPaymentMismatch):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrNotOwner),
		errors.Is(err, engine.ErrNotApproved),
		errors.Is(err, engine.ErrNotLessor),
		errors.Is(err, engine.ErrSelfLease),
		errors.Is(err, engine.ErrRepayNotAuthorized),
		errors.Is(err, engine.ErrLiquidateNotAuthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrPaymentFailed):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrDuplicateListing),
		errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, engine.ErrNotActive),
		errors.Is(err, engine.ErrNotLeased),
		errors.Is(err, engine.ErrApprovalRevoked),
		errors.Is(err, engine.ErrLeaseNotExpired),
		errors.Is(err, engine.ErrTransferFailed):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// fanOut publishes the current state of a listing as a transition event.
func (h *MarketHandler) fanOut(kind model.EventKind, id uint64) {
	if h.Publish == nil {
		return
	}
	ev := model.NewLeaseEvent(kind, h.Engine.Get(id), h.Engine.Now())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.Publish(ctx, ev) // errors are logged by the publisher
	}()
}

type listReq struct {
	Collection  string `json:"collection"`
	TokenID     uint64 `json:"token_id"`
	Collateral  uint64 `json:"collateral"`
	Rent        uint64 `json:"rent"`
	TermSeconds int64  `json:"term_seconds"`
}

// List handles POST /v1/listings. The caller becomes the lessor; no funds
// or custody move at this step.
func (h *MarketHandler) List(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req listReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Collection == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "collection is required"})
	}

	id, err := h.Engine.List(c.Request().Context(), acct, req.Collection, req.TokenID,
		req.Collateral, req.Rent, time.Duration(req.TermSeconds)*time.Second)
	if err != nil {
		return lifecycleError(c, err)
	}
	h.fanOut(model.EventListed, id)
	return c.JSON(http.StatusCreated, echo.Map{"listing_id": id})
}

// Delist handles DELETE /v1/listings/:id.
func (h *MarketHandler) Delist(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	if err := h.Engine.Delist(c.Request().Context(), id, acct); err != nil {
		return lifecycleError(c, err)
	}
	h.fanOut(model.EventDelisted, id)
	return c.NoContent(http.StatusNoContent)
}

type leaseReq struct {
	PaidValue uint64 `json:"paid_value"`
}

// LeaseIn handles POST /v1/listings/:id/lease. The declared paid_value must
// equal collateral+rent exactly; it is collected from the caller's rail
// balance as the attached payment.
func (h *MarketHandler) LeaseIn(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	var req leaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	if err := h.Engine.LeaseIn(c.Request().Context(), id, acct, req.PaidValue); err != nil {
		// The revoked-approval branch delists as a side effect; surface that.
		if errors.Is(err, engine.ErrApprovalRevoked) {
			h.fanOut(model.EventDelisted, id)
		}
		return lifecycleError(c, err)
	}
	h.fanOut(model.EventLeased, id)
	item := h.Engine.Get(id)
	return c.JSON(http.StatusOK, echo.Map{
		"listing_id":  id,
		"lease_start": item.LeaseStart,
		"lease_end":   item.LeaseEnd,
	})
}

// Repay handles POST /v1/listings/:id/repay. Any account holding, or
// approved to move, the asset may settle the lease.
func (h *MarketHandler) Repay(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	if err := h.Engine.Repay(c.Request().Context(), id, acct); err != nil {
		return lifecycleError(c, err)
	}
	h.fanOut(model.EventRepayed, id)
	return c.JSON(http.StatusOK, echo.Map{"listing_id": id, "status": model.StatusDelisted})
}

// Liquidate handles POST /v1/listings/:id/liquidate.
func (h *MarketHandler) Liquidate(c echo.Context) error {
	acct, err := caller(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	if err := h.Engine.Liquidate(c.Request().Context(), id, acct); err != nil {
		return lifecycleError(c, err)
	}
	h.fanOut(model.EventLiquidated, id)
	return c.JSON(http.StatusOK, echo.Map{"listing_id": id, "status": model.StatusDelisted})
}
