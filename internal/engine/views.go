package engine

import (
	"time"

	"github.com/renft/marketplace/internal/model"
)

// View operations. All are pure projections over the listing registry; none
// mutate state or touch the external adapters.

// Get returns the record for id, zero-valued when the id was never
// assigned.
func (e *Engine) Get(id uint64) model.ListingItem { return e.reg.Get(id) }

// GetByAsset returns the current non-terminal listing for an asset
// identity, zero-valued when none exists.
func (e *Engine) GetByAsset(collection string, tokenID uint64) model.ListingItem {
	return e.reg.GetByAsset(collection, tokenID)
}

// All returns every record ever created, terminal records included.
func (e *Engine) All() []model.ListingItem { return e.reg.All() }

// Active returns all ACTIVE records.
func (e *Engine) Active() []model.ListingItem { return e.reg.Active() }

// Leased returns all LEASED records.
func (e *Engine) Leased() []model.ListingItem { return e.reg.Leased() }

// ByLessor returns every record created by the account.
func (e *Engine) ByLessor(a model.Account) []model.ListingItem { return e.reg.ByLessor(a) }

// ByLessee returns every record ever leased by the account.
func (e *Engine) ByLessee(a model.Account) []model.ListingItem { return e.reg.ByLessee(a) }

// IsExpired reports whether the listing is LEASED and its term has elapsed
// strictly before now.
func (e *Engine) IsExpired(id uint64) bool {
	return e.reg.Get(id).ExpiredAt(e.clk.Now())
}

// Now exposes the engine's notion of current time.
func (e *Engine) Now() time.Time { return e.clk.Now() }
