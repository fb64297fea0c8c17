// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
)

// ReceiptLedger is the proof-of-deposit instrument. A receipt unit entitles
// its holder to a pro-rata share of a bucket's eventual proceeds. Injected
// so the engine never assumes a particular token-standard shape.
type ReceiptLedger interface {
	Mint(state contract.StateDB, owner common.Address, id [32]byte, amount *big.Int) error
	Burn(state contract.StateDB, owner common.Address, id [32]byte, amount *big.Int) error
	BalanceOf(state contract.StateDB, owner common.Address, id [32]byte) *big.Int
}

// StateReceipts is the production ReceiptLedger: balances and per-id supply
// in EVM storage under the hook's address.
type StateReceipts struct {
	addr common.Address
}

// NewStateReceipts creates a receipt ledger storing under addr
func NewStateReceipts(addr common.Address) *StateReceipts {
	return &StateReceipts{addr: addr}
}

func receiptKey(id [32]byte, owner common.Address) common.Hash {
	return makeStorageKey(receiptBalancePrefix, append(id[:], owner.Bytes()...))
}

// Mint credits amount receipt units to owner for bucket id
func (r *StateReceipts) Mint(state contract.StateDB, owner common.Address, id [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	key := receiptKey(id, owner)
	balance := readAmount(state, r.addr, key)
	writeAmount(state, r.addr, key, new(big.Int).Add(balance, amount))

	supplyKey := makeStorageKey(receiptSupplyPrefix, id[:])
	supply := readAmount(state, r.addr, supplyKey)
	writeAmount(state, r.addr, supplyKey, new(big.Int).Add(supply, amount))
	return nil
}

// Burn removes amount receipt units from owner for bucket id
func (r *StateReceipts) Burn(state contract.StateDB, owner common.Address, id [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	key := receiptKey(id, owner)
	balance := readAmount(state, r.addr, key)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientReceipts
	}
	writeAmount(state, r.addr, key, new(big.Int).Sub(balance, amount))

	supplyKey := makeStorageKey(receiptSupplyPrefix, id[:])
	supply := readAmount(state, r.addr, supplyKey)
	writeAmount(state, r.addr, supplyKey, new(big.Int).Sub(supply, amount))
	return nil
}

// BalanceOf reports owner's receipt balance for bucket id
func (r *StateReceipts) BalanceOf(state contract.StateDB, owner common.Address, id [32]byte) *big.Int {
	return readAmount(state, r.addr, receiptKey(id, owner))
}

// TotalSupply reports the outstanding receipt units for bucket id
func (r *StateReceipts) TotalSupply(state contract.StateDB, id [32]byte) *big.Int {
	return readAmount(state, r.addr, makeStorageKey(receiptSupplyPrefix, id[:]))
}
