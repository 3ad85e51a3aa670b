// Package engine implements the lease lifecycle state machine: list,
// delist, leaseIn, repay and liquidate, plus the read-only projections over
// the listing registry. The engine owns every business invariant; the asset
// registry and the payment rail are external collaborators consumed through
// the interfaces below.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/renft/marketplace/internal/clock"
	"github.com/renft/marketplace/internal/model"
	"github.com/renft/marketplace/internal/repository"
)

// AssetRegistry reports asset ownership and blanket operator approvals and
// performs owner-authorized transfers. A failed TransferFrom aborts the
// lifecycle call in progress.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, collection string, tokenID uint64) (model.Account, error)
	IsApprovedForAll(ctx context.Context, owner, operator model.Account) (bool, error)
	TransferFrom(ctx context.Context, from, to model.Account, collection string, tokenID uint64) error
}

// PaymentRail moves native value between accounts. A transfer that cannot
// complete fails the lifecycle call; there is no partial settlement. The
// attached payment of leaseIn is modeled as a rail transfer from the caller
// into the engine's escrow account, executed only after the exact-equality
// check passes.
type PaymentRail interface {
	Transfer(ctx context.Context, from, to model.Account, amount uint64) error
}

// Recorder receives the durable record of every committed transition.
// Failures are logged and never unwind a committed transition, matching the
// fire-and-forget contract of the event fan-out.
type Recorder interface {
	Record(ctx context.Context, ev model.LeaseEvent) error
}

// Params are the deployment-fixed marketplace constants. The fee fraction
// FeeNum/FeeDen is the lessor's share of the rent; the remainder stays
// escrowed in the engine account with no withdrawal path in scope.
type Params struct {
	MinTerm            time.Duration
	MaxTerm            time.Duration
	FeeNum             uint64
	FeeDen             uint64
	LesseeCanLiquidate bool
}

// Engine is the lease lifecycle state machine. A single mutex serializes
// lifecycle calls end to end, external adapter calls included, so each call
// is all-or-nothing from the perspective of any other caller and a listing
// can never be double-spent.
type Engine struct {
	mu       sync.Mutex
	reg      *repository.ListingRegistry
	assets   AssetRegistry
	rail     PaymentRail
	clk      clock.Clock
	rec      Recorder
	operator model.Account
	params   Params
}

// New constructs an Engine. rec may be nil when no durable journal is
// wired (tests).
func New(reg *repository.ListingRegistry, assets AssetRegistry, rail PaymentRail, clk clock.Clock, rec Recorder, operator model.Account, params Params) *Engine {
	if reg == nil || assets == nil || rail == nil || clk == nil {
		panic("nil dependency passed to engine.New")
	}
	return &Engine{
		reg:      reg,
		assets:   assets,
		rail:     rail,
		clk:      clk,
		rec:      rec,
		operator: operator,
		params:   params,
	}
}

// Operator returns the engine's escrow account on the payment rail.
func (e *Engine) Operator() model.Account { return e.operator }

// record appends a transition to the journal. Journal failures are logged,
// never surfaced: the transition has already committed.
func (e *Engine) record(ctx context.Context, kind model.EventKind, item model.ListingItem) {
	if e.rec == nil {
		return
	}
	if err := e.rec.Record(ctx, model.NewLeaseEvent(kind, item, e.clk.Now())); err != nil {
		log.Printf("engine: journal write failed for listing %d (%s): %v", item.ID, kind, err)
	}
}

// List creates an ACTIVE listing for an asset the caller owns and has
// approved the market to transfer. No funds or custody move here; the
// approval is checked, not consumed.
func (e *Engine) List(ctx context.Context, lessor model.Account, collection string, tokenID uint64, collateral, rent uint64, term time.Duration) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.reg.Full() {
		return 0, repository.ErrCapacityExceeded
	}
	if e.reg.IsListed(collection, tokenID) {
		return 0, repository.ErrDuplicateListing
	}
	approved, err := e.assets.IsApprovedForAll(ctx, lessor, e.operator)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if !approved {
		return 0, ErrNotApproved
	}
	owner, err := e.assets.OwnerOf(ctx, collection, tokenID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if owner != lessor {
		return 0, ErrNotOwner
	}
	if collateral == 0 {
		return 0, ErrInvalidCollateral
	}
	if rent == 0 {
		return 0, ErrInvalidRental
	}
	if term <= e.params.MinTerm || term >= e.params.MaxTerm {
		return 0, ErrTermOutOfRange
	}

	id, err := e.reg.Create(lessor, collection, tokenID, collateral, rent, term)
	if err != nil {
		return 0, err
	}
	e.record(ctx, model.EventListed, e.reg.Get(id))
	return id, nil
}

// Delist retires an ACTIVE listing. Only the lessor may delist, and only
// before a lease starts. No funds or custody move.
func (e *Engine) Delist(ctx context.Context, id uint64, caller model.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.reg.Get(id)
	if item.Status != model.StatusActive {
		return ErrNotActive
	}
	if item.Lessor != caller {
		return ErrNotLessor
	}
	e.reg.MarkDelisted(id)
	e.record(ctx, model.EventDelisted, e.reg.Get(id))
	return nil
}

// LeaseIn takes custody of the asset for the lease term. The caller pays
// exactly collateral+rent upfront; the asset moves lessor → caller, the
// lessor immediately receives rent×fee, and the rest (collateral plus the
// platform cut of the rent) stays escrowed in the engine account.
//
// If the lessor's blanket approval turns out to have been revoked, the
// listing is delisted as an observable side effect and the call fails
// without touching the caller's funds.
//
// The registry state moves to LEASED only after both external effects
// succeed; any adapter failure unwinds the effects already applied so the
// call is all-or-nothing.
func (e *Engine) LeaseIn(ctx context.Context, id uint64, caller model.Account, paid uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.reg.Get(id)
	if item.Status != model.StatusActive {
		return ErrNotActive
	}
	if caller == item.Lessor {
		return ErrSelfLease
	}
	approved, err := e.assets.IsApprovedForAll(ctx, item.Lessor, e.operator)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if !approved {
		// Guarded transition, not a bare error: the dedup flag is cleared
		// before the failure is reported so the asset can be re-listed.
		e.reg.MarkDelisted(id)
		e.record(ctx, model.EventDelisted, e.reg.Get(id))
		return ErrApprovalRevoked
	}
	total := item.Collateral + item.Rent
	if paid != total {
		return ErrPaymentMismatch
	}

	// Collect the attached payment into escrow first; nothing else has
	// happened yet, so an underfunded caller aborts cleanly.
	if err := e.rail.Transfer(ctx, caller, e.operator, total); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if err := e.assets.TransferFrom(ctx, item.Lessor, caller, item.Collection, item.TokenID); err != nil {
		e.refund(ctx, caller, total, id)
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	lessorShare := item.Rent * e.params.FeeNum / e.params.FeeDen
	if err := e.rail.Transfer(ctx, e.operator, item.Lessor, lessorShare); err != nil {
		// Unwind custody and the escrowed payment.
		if terr := e.assets.TransferFrom(ctx, caller, item.Lessor, item.Collection, item.TokenID); terr != nil {
			log.Printf("engine: leaseIn unwind transfer failed for listing %d: %v", id, terr)
		}
		e.refund(ctx, caller, total, id)
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	e.reg.MarkLeased(id, caller, e.clk.Now())
	e.record(ctx, model.EventLeased, e.reg.Get(id))
	return nil
}

func (e *Engine) refund(ctx context.Context, to model.Account, amount uint64, id uint64) {
	if err := e.rail.Transfer(ctx, e.operator, to, amount); err != nil {
		log.Printf("engine: refund of %d to %s failed for listing %d: %v", amount, to, id, err)
	}
}

// Repay settles a lease: the asset returns to the lessor and the collateral
// is refunded to the repayer. Any account holding, or approved to move, the
// asset may repay, at any time before liquidation — repay wins the race if
// it executes first.
func (e *Engine) Repay(ctx context.Context, id uint64, caller model.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.reg.Get(id)
	if item.Status != model.StatusLeased {
		return ErrNotLeased
	}
	owner, err := e.assets.OwnerOf(ctx, item.Collection, item.TokenID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if caller != owner {
		ok, err := e.assets.IsApprovedForAll(ctx, owner, caller)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		if !ok {
			return ErrRepayNotAuthorized
		}
	}

	if err := e.assets.TransferFrom(ctx, owner, item.Lessor, item.Collection, item.TokenID); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.rail.Transfer(ctx, e.operator, caller, item.Collateral); err != nil {
		// Return the asset so the failed call leaves no trace.
		if terr := e.assets.TransferFrom(ctx, item.Lessor, owner, item.Collection, item.TokenID); terr != nil {
			log.Printf("engine: repay unwind transfer failed for listing %d: %v", id, terr)
		}
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	e.reg.MarkDelisted(id)
	e.record(ctx, model.EventRepayed, e.reg.Get(id))
	return nil
}

// Liquidate forfeits the collateral to the lessor once the lease term has
// strictly expired. The asset is not reclaimed: custody moved to the lessee
// at lease-in and stays there. By default only the lessor may liquidate;
// the LesseeCanLiquidate policy additionally permits the lessee.
func (e *Engine) Liquidate(ctx context.Context, id uint64, caller model.Account) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.reg.Get(id)
	if item.Status != model.StatusLeased {
		return ErrNotLeased
	}
	if !e.clk.Now().After(item.LeaseEnd) {
		return ErrLeaseNotExpired
	}
	if caller != item.Lessor && !(e.params.LesseeCanLiquidate && caller == item.Lessee) {
		return ErrLiquidateNotAuthorized
	}

	if err := e.rail.Transfer(ctx, e.operator, item.Lessor, item.Collateral); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	e.reg.MarkDelisted(id)
	e.record(ctx, model.EventLiquidated, e.reg.Get(id))
	return nil
}
