package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/renft/marketplace/internal/engine"
	"github.com/renft/marketplace/internal/model"
	"github.com/renft/marketplace/internal/repository"
)

// ViewHandler exposes the read-only projections over the listing registry
// and the per-listing transition history from the journal. Nothing here
// mutates state; all endpoints are public and sit behind the response
// cache.
type ViewHandler struct {
	Engine  *engine.Engine
	Journal *repository.JournalRepo // nil when no database is wired
}

func NewViewHandler(eng *engine.Engine, journal *repository.JournalRepo) *ViewHandler {
	if eng == nil {
		panic("nil engine passed to NewViewHandler")
	}
	return &ViewHandler{Engine: eng, Journal: journal}
}

// GetListing handles GET /v1/listings/:id. Unknown ids return a 404; the
// registry itself reports them as zero-value records.
func (h *ViewHandler) GetListing(c echo.Context) error {
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	item := h.Engine.Get(id)
	if !item.Exists() {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}

// ListListings handles GET /v1/listings with optional status, lessor and
// lessee filters. Without filters it returns every record ever created,
// terminal ones included.
func (h *ViewHandler) ListListings(c echo.Context) error {
	var items []model.ListingItem
	switch c.QueryParam("status") {
	case "":
		items = h.Engine.All()
	case "active":
		items = h.Engine.Active()
	case "leased":
		items = h.Engine.Leased()
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be active or leased"})
	}
	if lessor := c.QueryParam("lessor"); lessor != "" {
		items = intersectByID(items, h.Engine.ByLessor(model.Account(lessor)))
	}
	if lessee := c.QueryParam("lessee"); lessee != "" {
		items = intersectByID(items, h.Engine.ByLessee(model.Account(lessee)))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func intersectByID(a, b []model.ListingItem) []model.ListingItem {
	keep := make(map[uint64]struct{}, len(b))
	for _, it := range b {
		keep[it.ID] = struct{}{}
	}
	out := make([]model.ListingItem, 0, len(a))
	for _, it := range a {
		if _, ok := keep[it.ID]; ok {
			out = append(out, it)
		}
	}
	return out
}

// GetListingByAsset handles GET /v1/assets/:collection/:token/listing. It
// returns the current non-terminal listing for the asset, or an empty item
// when none exists, matching the zero-result query contract.
func (h *ViewHandler) GetListingByAsset(c echo.Context) error {
	tokenID, err := strconv.ParseUint(c.Param("token"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	item := h.Engine.GetByAsset(c.Param("collection"), tokenID)
	return c.JSON(http.StatusOK, echo.Map{"item": item, "listed": item.Exists()})
}

// IsExpired handles GET /v1/listings/:id/expired. True iff the listing is
// leased and its term elapsed strictly before now.
func (h *ViewHandler) IsExpired(c echo.Context) error {
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	return c.JSON(http.StatusOK, echo.Map{"listing_id": id, "expired": h.Engine.IsExpired(id)})
}

// CurrentTime handles GET /v1/time, exposing the engine's clock so clients
// can compute expiries against the marketplace's notion of now.
func (h *ViewHandler) CurrentTime(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"now": h.Engine.Now().Format(time.RFC3339)})
}

// History handles GET /v1/listings/:id/history, returning the journaled
// transitions for a listing in order of occurrence.
func (h *ViewHandler) History(c echo.Context) error {
	if h.Journal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "journal not available"})
	}
	id, err := listingID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	events, err := h.Journal.ListByListing(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load history"})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}
