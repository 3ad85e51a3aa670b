package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/renft/marketplace/internal/assets"
	"github.com/renft/marketplace/internal/clock"
	"github.com/renft/marketplace/internal/funds"
	"github.com/renft/marketplace/internal/model"
	"github.com/renft/marketplace/internal/repository"
)

const (
	operator = model.Account("market-escrow")
	alice    = model.Account("alice") // lessor in most scenarios
	bob      = model.Account("bob")   // lessee in most scenarios
	carol    = model.Account("carol") // third party
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// memRecorder captures journal writes in memory.
type memRecorder struct {
	events []model.LeaseEvent
	fail   error
}

func (r *memRecorder) Record(_ context.Context, ev model.LeaseEvent) error {
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *memRecorder) kinds() []model.EventKind {
	out := make([]model.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type harness struct {
	eng    *Engine
	ledger *assets.Ledger
	bank   *funds.Bank
	clk    *clock.Manual
	rec    *memRecorder
}

func defaultParams() Params {
	return Params{
		MinTerm: time.Minute,
		MaxTerm: 240 * time.Hour,
		FeeNum:  95,
		FeeDen:  100,
	}
}

// newHarness wires a fresh engine over real in-memory adapters: alice owns
// punks/7 and has approved the market, bob holds 10_000 on the rail.
func newHarness(t *testing.T, params Params) *harness {
	t.Helper()
	ledger := assets.NewLedger(operator)
	require.NoError(t, ledger.Mint("punks", 7, alice))
	ledger.SetApprovalForAll(alice, operator, true)

	bank := funds.NewBank()
	bank.Deposit(bob, 10_000)

	clk := clock.NewManual(t0)
	rec := &memRecorder{}
	reg := repository.NewListingRegistry(100)

	return &harness{
		eng:    New(reg, ledger, bank, clk, rec, operator, params),
		ledger: ledger,
		bank:   bank,
		clk:    clk,
		rec:    rec,
	}
}

func (h *harness) list(t *testing.T) uint64 {
	t.Helper()
	id, err := h.eng.List(context.Background(), alice, "punks", 7, 1000, 100, time.Hour)
	require.NoError(t, err)
	return id
}

func (h *harness) lease(t *testing.T, id uint64) {
	t.Helper()
	require.NoError(t, h.eng.LeaseIn(context.Background(), id, bob, 1100))
}

func TestList(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns increasing ids and marks the asset listed", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		require.NoError(t, h.ledger.Mint("punks", 8, alice))

		id0, err := h.eng.List(ctx, alice, "punks", 7, 1000, 100, time.Hour)
		require.NoError(t, err)
		id1, err := h.eng.List(ctx, alice, "punks", 8, 1000, 100, time.Hour)
		require.NoError(t, err)
		require.Equal(t, uint64(0), id0)
		require.Equal(t, uint64(1), id1)

		it := h.eng.Get(id0)
		require.Equal(t, model.StatusActive, it.Status)
		require.Equal(t, alice, it.Lessor)
		require.Equal(t, []model.EventKind{model.EventListed, model.EventListed}, h.rec.kinds())
	})

	t.Run("rejects a duplicate listing regardless of caller", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		h.list(t)

		_, err := h.eng.List(ctx, alice, "punks", 7, 2000, 200, time.Hour)
		require.ErrorIs(t, err, repository.ErrDuplicateListing)

		// Even the asset owner cannot double-list through another account.
		h.ledger.SetApprovalForAll(carol, operator, true)
		_, err = h.eng.List(ctx, carol, "punks", 7, 2000, 200, time.Hour)
		require.ErrorIs(t, err, repository.ErrDuplicateListing)
	})

	t.Run("requires the market's blanket approval", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		h.ledger.SetApprovalForAll(alice, operator, false)
		_, err := h.eng.List(ctx, alice, "punks", 7, 1000, 100, time.Hour)
		require.ErrorIs(t, err, ErrNotApproved)
	})

	t.Run("requires the caller to own the asset", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		h.ledger.SetApprovalForAll(carol, operator, true)
		_, err := h.eng.List(ctx, carol, "punks", 7, 1000, 100, time.Hour)
		require.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("validates listing terms", func(t *testing.T) {
		h := newHarness(t, defaultParams())

		_, err := h.eng.List(ctx, alice, "punks", 7, 0, 100, time.Hour)
		require.ErrorIs(t, err, ErrInvalidCollateral)
		_, err = h.eng.List(ctx, alice, "punks", 7, 1000, 0, time.Hour)
		require.ErrorIs(t, err, ErrInvalidRental)
		// Bounds are strict on both ends.
		_, err = h.eng.List(ctx, alice, "punks", 7, 1000, 100, time.Minute)
		require.ErrorIs(t, err, ErrTermOutOfRange)
		_, err = h.eng.List(ctx, alice, "punks", 7, 1000, 100, 240*time.Hour)
		require.ErrorIs(t, err, ErrTermOutOfRange)
	})

	t.Run("enforces the registry capacity", func(t *testing.T) {
		ledger := assets.NewLedger(operator)
		require.NoError(t, ledger.Mint("punks", 1, alice))
		require.NoError(t, ledger.Mint("punks", 2, alice))
		ledger.SetApprovalForAll(alice, operator, true)
		eng := New(repository.NewListingRegistry(1), ledger, funds.NewBank(), clock.NewFixed(t0), nil, operator, defaultParams())

		_, err := eng.List(ctx, alice, "punks", 1, 1000, 100, time.Hour)
		require.NoError(t, err)
		_, err = eng.List(ctx, alice, "punks", 2, 1000, 100, time.Hour)
		require.ErrorIs(t, err, repository.ErrCapacityExceeded)
	})
}

func TestDelist(t *testing.T) {
	ctx := context.Background()

	t.Run("lessor delists, asset becomes relistable under a new id", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)

		require.NoError(t, h.eng.Delist(ctx, id, alice))
		require.Equal(t, model.StatusDelisted, h.eng.Get(id).Status)

		id2, err := h.eng.List(ctx, alice, "punks", 7, 1000, 100, time.Hour)
		require.NoError(t, err)
		require.NotEqual(t, id, id2)
	})

	t.Run("only the lessor may delist", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		require.ErrorIs(t, h.eng.Delist(ctx, id, bob), ErrNotLessor)
		require.Equal(t, model.StatusActive, h.eng.Get(id).Status)
	})

	t.Run("rejects non-active listings, unknown ids included", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		require.ErrorIs(t, h.eng.Delist(ctx, id, alice), ErrNotActive)
		require.ErrorIs(t, h.eng.Delist(ctx, 99, alice), ErrNotActive)
	})
}

func TestLeaseIn(t *testing.T) {
	ctx := context.Background()

	t.Run("moves custody, splits rent and escrows the rest", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)

		require.NoError(t, h.eng.LeaseIn(ctx, id, bob, 1100))

		it := h.eng.Get(id)
		require.Equal(t, model.StatusLeased, it.Status)
		require.Equal(t, bob, it.Lessee)
		require.Equal(t, t0, it.LeaseStart)
		require.Equal(t, t0.Add(time.Hour), it.LeaseEnd)
		require.Equal(t, it.Term, it.LeaseEnd.Sub(it.LeaseStart))

		owner, err := h.ledger.OwnerOf(ctx, "punks", 7)
		require.NoError(t, err)
		require.Equal(t, bob, owner)

		// rent=100: lessor gets 95, escrow holds collateral + 5.
		require.Equal(t, uint64(95), h.bank.Balance(alice))
		require.Equal(t, uint64(10_000-1100), h.bank.Balance(bob))
		require.Equal(t, uint64(1005), h.bank.Balance(operator))
	})

	t.Run("integer division floors the lessor share", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id, err := h.eng.List(ctx, alice, "punks", 7, 1000, 99, time.Hour)
		require.NoError(t, err)

		require.NoError(t, h.eng.LeaseIn(ctx, id, bob, 1099))
		// 99*95/100 = 94; the 5-unit remainder stays escrowed.
		require.Equal(t, uint64(94), h.bank.Balance(alice))
		require.Equal(t, uint64(1005), h.bank.Balance(operator))
	})

	t.Run("rejects any payment other than collateral+rent exactly", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)

		for _, paid := range []uint64{0, 1099, 1101, 2200} {
			err := h.eng.LeaseIn(ctx, id, bob, paid)
			require.ErrorIs(t, err, ErrPaymentMismatch)
		}
		// Nothing moved.
		require.Equal(t, model.StatusActive, h.eng.Get(id).Status)
		require.Equal(t, uint64(10_000), h.bank.Balance(bob))
		require.Equal(t, uint64(0), h.bank.Balance(operator))
	})

	t.Run("rejects self-lease", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		require.ErrorIs(t, h.eng.LeaseIn(ctx, id, alice, 1100), ErrSelfLease)
	})

	t.Run("rejects non-active listings", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		require.ErrorIs(t, h.eng.LeaseIn(ctx, id, carol, 1100), ErrNotActive)
		require.ErrorIs(t, h.eng.LeaseIn(ctx, 99, bob, 1100), ErrNotActive)
	})

	t.Run("auto-delists when the lessor's approval was revoked", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.ledger.SetApprovalForAll(alice, operator, false)

		err := h.eng.LeaseIn(ctx, id, bob, 1100)
		require.ErrorIs(t, err, ErrApprovalRevoked)

		// The delist is an observable side effect of the failed call.
		require.Equal(t, model.StatusDelisted, h.eng.Get(id).Status)
		require.False(t, h.eng.GetByAsset("punks", 7).Exists())
		require.Equal(t, uint64(10_000), h.bank.Balance(bob))
		require.Equal(t, []model.EventKind{model.EventListed, model.EventDelisted}, h.rec.kinds())
	})

	t.Run("refunds the caller when the caller cannot pay", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)

		err := h.eng.LeaseIn(ctx, id, carol, 1100) // carol holds nothing
		require.ErrorIs(t, err, ErrPaymentFailed)
		require.Equal(t, model.StatusActive, h.eng.Get(id).Status)
		owner, _ := h.ledger.OwnerOf(ctx, "punks", 7)
		require.Equal(t, alice, owner)
	})
}

func TestRepay(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the asset and refunds the collateral to the repayer", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		h.ledger.SetApprovalForAll(bob, operator, true)

		require.NoError(t, h.eng.Repay(ctx, id, bob))

		it := h.eng.Get(id)
		require.Equal(t, model.StatusDelisted, it.Status)
		owner, _ := h.ledger.OwnerOf(ctx, "punks", 7)
		require.Equal(t, alice, owner)
		// bob paid 1100 and got the 1000 collateral back; net cost is
		// the rent. The platform keeps its 5-unit cut forever.
		require.Equal(t, uint64(10_000-100), h.bank.Balance(bob))
		require.Equal(t, uint64(5), h.bank.Balance(operator))
		require.Equal(t, []model.EventKind{model.EventListed, model.EventLeased, model.EventRepayed}, h.rec.kinds())
	})

	t.Run("any account approved by the asset holder may repay", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		h.ledger.SetApprovalForAll(bob, operator, true)
		h.ledger.SetApprovalForAll(bob, carol, true)

		require.NoError(t, h.eng.Repay(ctx, id, carol))
		// The refund goes to the repayer, not the lessee.
		require.Equal(t, uint64(1000), h.bank.Balance(carol))
		require.Equal(t, uint64(10_000-1100), h.bank.Balance(bob))
	})

	t.Run("rejects unauthorized repayers", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		h.ledger.SetApprovalForAll(bob, operator, true)

		require.ErrorIs(t, h.eng.Repay(ctx, id, carol), ErrRepayNotAuthorized)
		require.Equal(t, model.StatusLeased, h.eng.Get(id).Status)
	})

	t.Run("rejects non-leased listings", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		require.ErrorIs(t, h.eng.Repay(ctx, id, bob), ErrNotLeased)
		require.ErrorIs(t, h.eng.Repay(ctx, 99, bob), ErrNotLeased)
	})

	t.Run("fails cleanly when the asset holder never approved the market", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		// bob holds the asset but never granted the market a blanket
		// approval, so the return transfer cannot run.
		err := h.eng.Repay(ctx, id, bob)
		require.ErrorIs(t, err, ErrTransferFailed)
		require.Equal(t, model.StatusLeased, h.eng.Get(id).Status)
		owner, _ := h.ledger.OwnerOf(ctx, "punks", 7)
		require.Equal(t, bob, owner)
	})

	t.Run("repay remains possible after expiry until liquidation runs", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		h.ledger.SetApprovalForAll(bob, operator, true)
		h.clk.Advance(2 * time.Hour)

		require.NoError(t, h.eng.Repay(ctx, id, bob))
		// The loser of the race sees the terminal state.
		require.ErrorIs(t, h.eng.Liquidate(ctx, id, alice), ErrNotLeased)
	})
}

func TestLiquidate(t *testing.T) {
	ctx := context.Background()

	t.Run("forfeits the collateral to the lessor after expiry", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		h.clk.Advance(time.Hour + time.Second)

		require.NoError(t, h.eng.Liquidate(ctx, id, alice))

		require.Equal(t, model.StatusDelisted, h.eng.Get(id).Status)
		// alice: 95 rent share + 1000 forfeited collateral.
		require.Equal(t, uint64(1095), h.bank.Balance(alice))
		require.Equal(t, uint64(5), h.bank.Balance(operator))
		// Custody is not reclaimed.
		owner, _ := h.ledger.OwnerOf(ctx, "punks", 7)
		require.Equal(t, bob, owner)
		require.Equal(t, []model.EventKind{model.EventListed, model.EventLeased, model.EventLiquidated}, h.rec.kinds())
	})

	t.Run("expiry is strict: now must be after leaseEnd", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)

		h.clk.Set(t0.Add(time.Hour)) // exactly leaseEnd
		require.ErrorIs(t, h.eng.Liquidate(ctx, id, alice), ErrLeaseNotExpired)
		require.False(t, h.eng.IsExpired(id))

		h.clk.Advance(time.Nanosecond)
		require.True(t, h.eng.IsExpired(id))
		require.NoError(t, h.eng.Liquidate(ctx, id, alice))
	})

	t.Run("only the lessor may liquidate by default", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		h.lease(t, id)
		h.clk.Advance(2 * time.Hour)

		require.ErrorIs(t, h.eng.Liquidate(ctx, id, bob), ErrLiquidateNotAuthorized)
		require.ErrorIs(t, h.eng.Liquidate(ctx, id, carol), ErrLiquidateNotAuthorized)
		require.NoError(t, h.eng.Liquidate(ctx, id, alice))
	})

	t.Run("the lessee may liquidate when the policy allows it", func(t *testing.T) {
		params := defaultParams()
		params.LesseeCanLiquidate = true
		h := newHarness(t, params)
		id := h.list(t)
		h.lease(t, id)
		h.clk.Advance(2 * time.Hour)

		require.ErrorIs(t, h.eng.Liquidate(ctx, id, carol), ErrLiquidateNotAuthorized)
		require.NoError(t, h.eng.Liquidate(ctx, id, bob))
		require.Equal(t, uint64(1095), h.bank.Balance(alice))
	})

	t.Run("rejects non-leased listings", func(t *testing.T) {
		h := newHarness(t, defaultParams())
		id := h.list(t)
		require.ErrorIs(t, h.eng.Liquidate(ctx, id, alice), ErrNotLeased)
	})
}

// TestFullLifecycle walks the canonical scenario end to end and checks every
// balance and custody change along the way.
func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultParams())

	id, err := h.eng.List(ctx, alice, "punks", 7, 1000, 100, time.Hour)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	require.NoError(t, h.eng.LeaseIn(ctx, id, bob, 1100))
	require.Equal(t, uint64(95), h.bank.Balance(alice))
	require.Equal(t, uint64(8900), h.bank.Balance(bob))
	require.Equal(t, uint64(1005), h.bank.Balance(operator))

	h.clk.Advance(30 * time.Minute)
	h.ledger.SetApprovalForAll(bob, operator, true)
	require.NoError(t, h.eng.Repay(ctx, id, bob))

	require.Equal(t, uint64(95), h.bank.Balance(alice))
	require.Equal(t, uint64(9900), h.bank.Balance(bob))
	require.Equal(t, uint64(5), h.bank.Balance(operator))
	owner, _ := h.ledger.OwnerOf(ctx, "punks", 7)
	require.Equal(t, alice, owner)

	// The asset is free again; relisting mints a fresh id.
	id2, err := h.eng.List(ctx, alice, "punks", 7, 2000, 200, 2*time.Hour)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id2)

	require.Equal(t, []model.EventKind{
		model.EventListed, model.EventLeased, model.EventRepayed, model.EventListed,
	}, h.rec.kinds())
}

func TestJournalFailureDoesNotUnwind(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultParams())
	h.rec.fail = errors.New("journal down")

	id, err := h.eng.List(ctx, alice, "punks", 7, 1000, 100, time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.eng.LeaseIn(ctx, id, bob, 1100))
	require.Equal(t, model.StatusLeased, h.eng.Get(id).Status)
	require.Empty(t, h.rec.events)
}

func TestViews(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, defaultParams())
	require.NoError(t, h.ledger.Mint("punks", 8, alice))

	id0 := h.list(t)
	id1, err := h.eng.List(ctx, alice, "punks", 8, 500, 50, time.Hour)
	require.NoError(t, err)
	h.lease(t, id0)

	require.Len(t, h.eng.All(), 2)
	require.Len(t, h.eng.Active(), 1)
	require.Equal(t, id1, h.eng.Active()[0].ID)
	require.Len(t, h.eng.Leased(), 1)
	require.Equal(t, id0, h.eng.Leased()[0].ID)
	require.Len(t, h.eng.ByLessor(alice), 2)
	require.Len(t, h.eng.ByLessee(bob), 1)

	require.Equal(t, id0, h.eng.GetByAsset("punks", 7).ID)
	require.False(t, h.eng.Get(99).Exists())
	require.Equal(t, t0, h.eng.Now())
}
