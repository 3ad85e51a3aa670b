// Package assets implements the marketplace's custodial asset registry. The
// lifecycle engine consumes it through the engine.AssetRegistry interface;
// ownership is never cached elsewhere, every lifecycle call queries and
// delegates to this ledger.
package assets

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/renft/marketplace/internal/model"
)

// ErrUnknownAsset is returned when an asset identity was never minted.
var ErrUnknownAsset = errors.New("unknown asset")

// ErrNotTokenOwner is returned when a transfer names a 'from' account that
// does not currently own the asset.
var ErrNotTokenOwner = errors.New("from is not the token owner")

// ErrTransferUnauthorized is returned when the ledger's operator lacks a
// blanket approval from the current owner.
var ErrTransferUnauthorized = errors.New("operator not approved by owner")

// ErrAssetExists is returned when minting an identity that already exists.
var ErrAssetExists = errors.New("asset already minted")

// Ledger tracks asset ownership and blanket operator approvals, in the
// manner of an ERC-721 registry: ownerOf, isApprovedForAll and an
// owner-authorized transferFrom. Transfers initiated through the ledger run
// with the configured operator identity (the marketplace escrow account);
// they require the 'from' account to either be the operator itself or to
// have granted the operator a blanket approval.
type Ledger struct {
	mu        sync.RWMutex
	operator  model.Account
	owners    map[string]model.Account
	approvals map[model.Account]map[model.Account]bool
}

// NewLedger returns an empty ledger whose transfers are authorized against
// the given operator account.
func NewLedger(operator model.Account) *Ledger {
	return &Ledger{
		operator:  operator,
		owners:    make(map[string]model.Account),
		approvals: make(map[model.Account]map[model.Account]bool),
	}
}

func key(collection string, tokenID uint64) string {
	return collection + "/" + strconv.FormatUint(tokenID, 10)
}

// Mint registers a new asset identity under the given owner.
func (l *Ledger) Mint(collection string, tokenID uint64, owner model.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(collection, tokenID)
	if _, ok := l.owners[k]; ok {
		return ErrAssetExists
	}
	l.owners[k] = owner
	return nil
}

// SetApprovalForAll grants or revokes a blanket transfer approval from
// owner to operator, covering every asset the owner holds now or later.
func (l *Ledger) SetApprovalForAll(owner, operator model.Account, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.approvals[owner]
	if m == nil {
		m = make(map[model.Account]bool)
		l.approvals[owner] = m
	}
	if approved {
		m[operator] = true
	} else {
		delete(m, operator)
	}
}

// OwnerOf reports the current owner of an asset.
func (l *Ledger) OwnerOf(_ context.Context, collection string, tokenID uint64) (model.Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[key(collection, tokenID)]
	if !ok {
		return "", ErrUnknownAsset
	}
	return owner, nil
}

// IsApprovedForAll reports whether owner has granted operator a blanket
// transfer approval.
func (l *Ledger) IsApprovedForAll(_ context.Context, owner, operator model.Account) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.approvals[owner][operator], nil
}

// TransferFrom moves the asset from 'from' to 'to'. It fails when 'from' is
// not the current owner or when the ledger operator lacks authorization over
// 'from'. A failed transfer must abort the lifecycle call in progress.
func (l *Ledger) TransferFrom(_ context.Context, from, to model.Account, collection string, tokenID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key(collection, tokenID)
	owner, ok := l.owners[k]
	if !ok {
		return ErrUnknownAsset
	}
	if owner != from {
		return ErrNotTokenOwner
	}
	if from != l.operator && !l.approvals[from][l.operator] {
		return ErrTransferUnauthorized
	}
	l.owners[k] = to
	return nil
}
