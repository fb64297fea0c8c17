// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"math/big"

	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
	"github.com/luxfi/log"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
)

// SwapGateway is the engine's view of the pool manager: execute a swap and
// settle the resulting signed deltas. dex.PoolManager implements it.
type SwapGateway interface {
	Swap(state contract.StateDB, sender common.Address, key dex.PoolKey, params dex.SwapParams) (dex.BalanceDelta, error)
	Settle(state contract.StateDB, from common.Address, currency dex.Currency, amount *big.Int) error
	Take(state contract.StateDB, currency dex.Currency, to common.Address, amount *big.Int) error
}

// Engine owns all bucket, cursor, and receipt state for the limit order
// hook. One engine instance serves every pool whose key names the hook.
type Engine struct {
	addr     common.Address
	gateway  SwapGateway
	receipts ReceiptLedger
	log      log.Logger

	// filling guards against re-entrant crossing passes. The engine's own
	// fill swaps re-enter AfterSwap with the hook as sender and are skipped
	// there; this flag covers anything else arriving mid-pass.
	filling bool
}

// NewEngine creates a limit order engine bound to the hook address
func NewEngine(addr common.Address, gateway SwapGateway, receipts ReceiptLedger, logger log.Logger) *Engine {
	return &Engine{
		addr:     addr,
		gateway:  gateway,
		receipts: receipts,
		log:      logger,
	}
}

// Address returns the hook's precompile address
func (e *Engine) Address() common.Address {
	return e.addr
}

// Receipts returns the engine's receipt ledger
func (e *Engine) Receipts() ReceiptLedger {
	return e.receipts
}

// SetLogger replaces the engine's logger
func (e *Engine) SetLogger(logger log.Logger) {
	e.log = logger
}

func (e *Engine) emitLog(state contract.StateDB, topics []common.Hash, data []byte) {
	state.AddLog(&ethtypes.Log{
		Address: e.addr,
		Topics:  topics,
		Data:    data,
	})
}

// GetBucket returns the stored state of a bucket
func (e *Engine) GetBucket(state contract.StateDB, id [32]byte) (*Bucket, error) {
	return loadBucket(state, e.addr, id)
}

// Cursor returns a pool's last-observed aligned tick and whether the pool
// is tracked by the hook
func (e *Engine) Cursor(state contract.StateDB, poolID [32]byte) (int24, bool) {
	return getCursor(state, e.addr, poolID)
}
