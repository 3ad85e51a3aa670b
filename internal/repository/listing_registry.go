package repository

import (
	"strconv"
	"sync"
	"time"

	"github.com/renft/marketplace/internal/model"
)

// ListingRegistry owns the canonical table of listing records. Records live
// in an arena indexed by their id: ids are dense, assigned in creation order
// starting at 0, and never reused, so the slice index is the id. A secondary
// index keyed by (collection, tokenId) prevents double-listing; it is a
// derived cache updated together with the record and is never treated as the
// source of truth for Status.
//
// Only the lifecycle engine mutates records. The registry's own RWMutex makes
// reads safe against concurrent view queries; serialization of whole
// lifecycle calls is the engine's job.
type ListingRegistry struct {
	mu     sync.RWMutex
	items  []model.ListingItem
	listed map[string]bool
	max    int
}

// NewListingRegistry returns an empty registry bounded by max listings ever
// created.
func NewListingRegistry(max int) *ListingRegistry {
	return &ListingRegistry{
		items:  make([]model.ListingItem, 0),
		listed: make(map[string]bool),
		max:    max,
	}
}

// assetKey builds the dedup index key for an asset identity.
func assetKey(collection string, tokenID uint64) string {
	return collection + "/" + strconv.FormatUint(tokenID, 10)
}

// Create inserts a new ACTIVE record and sets the dedup flag, returning the
// assigned id. It fails with ErrDuplicateListing when the asset already has a
// non-terminal listing and with ErrCapacityExceeded when the id space is
// exhausted. The id counter is the arena length; once an id is handed out it
// is consumed for good.
func (r *ListingRegistry) Create(lessor model.Account, collection string, tokenID uint64, collateral, rent uint64, term time.Duration) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := assetKey(collection, tokenID)
	if r.listed[key] {
		return 0, ErrDuplicateListing
	}
	if len(r.items) >= r.max {
		return 0, ErrCapacityExceeded
	}

	id := uint64(len(r.items))
	r.items = append(r.items, model.ListingItem{
		ID:         id,
		Status:     model.StatusActive,
		Lessor:     lessor,
		Collection: collection,
		TokenID:    tokenID,
		Collateral: collateral,
		Rent:       rent,
		Term:       term,
	})
	r.listed[key] = true
	return id, nil
}

// MarkLeased transitions a record to LEASED, recording the lessee and the
// lease window. LeaseEnd is LeaseStart + Term exactly, set once here and
// never recomputed. The caller enforces the ACTIVE precondition.
func (r *ListingRegistry) MarkLeased(id uint64, lessee model.Account, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= uint64(len(r.items)) {
		return
	}
	it := &r.items[id]
	it.Status = model.StatusLeased
	it.Lessee = lessee
	it.LeaseStart = start.UTC()
	it.LeaseEnd = start.UTC().Add(it.Term)
}

// MarkDelisted transitions a record to DELISTED and clears the dedup flag so
// the asset can be listed again under a fresh id. The record itself is kept
// forever for audit and query purposes. The caller enforces the ACTIVE or
// LEASED precondition.
func (r *ListingRegistry) MarkDelisted(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= uint64(len(r.items)) {
		return
	}
	it := &r.items[id]
	it.Status = model.StatusDelisted
	delete(r.listed, assetKey(it.Collection, it.TokenID))
}

// Get returns the record for id, or a zero-value item when the id was never
// assigned. Callers check Status rather than an error, matching the
// read-only query contract.
func (r *ListingRegistry) Get(id uint64) model.ListingItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id >= uint64(len(r.items)) {
		return model.ListingItem{}
	}
	return r.items[id]
}

// GetByAsset returns the current non-terminal listing for an asset identity,
// or a zero-value item when none exists.
func (r *ListingRegistry) GetByAsset(collection string, tokenID uint64) model.ListingItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.listed[assetKey(collection, tokenID)] {
		return model.ListingItem{}
	}
	for i := len(r.items) - 1; i >= 0; i-- {
		it := r.items[i]
		if it.Collection == collection && it.TokenID == tokenID && it.Status != model.StatusDelisted {
			return it
		}
	}
	return model.ListingItem{}
}

// IsListed reports the dedup flag for an asset identity.
func (r *ListingRegistry) IsListed(collection string, tokenID uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listed[assetKey(collection, tokenID)]
}

// Full reports whether the next id would exceed the configured maximum.
func (r *ListingRegistry) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items) >= r.max
}

// Count returns the number of ids ever assigned, terminal records included.
func (r *ListingRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// All returns every record in id order, terminal records included.
func (r *ListingRegistry) All() []model.ListingItem {
	return r.filter(func(model.ListingItem) bool { return true })
}

// Active returns all ACTIVE records in id order.
func (r *ListingRegistry) Active() []model.ListingItem {
	return r.filter(func(it model.ListingItem) bool { return it.Status == model.StatusActive })
}

// Leased returns all LEASED records in id order.
func (r *ListingRegistry) Leased() []model.ListingItem {
	return r.filter(func(it model.ListingItem) bool { return it.Status == model.StatusLeased })
}

// ByLessor returns every record created by the given account, terminal
// records included.
func (r *ListingRegistry) ByLessor(a model.Account) []model.ListingItem {
	return r.filter(func(it model.ListingItem) bool { return it.Lessor == a })
}

// ByLessee returns every record ever leased by the given account.
func (r *ListingRegistry) ByLessee(a model.Account) []model.ListingItem {
	return r.filter(func(it model.ListingItem) bool { return it.Lessee == a })
}

func (r *ListingRegistry) filter(keep func(model.ListingItem) bool) []model.ListingItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ListingItem, 0)
	for _, it := range r.items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
