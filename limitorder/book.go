// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
)

// Place deposits amount of the input asset at the bucket for tick, creating
// the bucket on first use, minting receipts to the sender, and pulling the
// deposit into hook custody. Returns the aligned tick lower so the caller
// can reference the bucket later.
func (e *Engine) Place(
	state contract.StateDB,
	sender common.Address,
	key dex.PoolKey,
	tick int24,
	zeroForOne bool,
	amount *big.Int,
) (int24, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	poolID := key.ID()
	if _, tracked := getCursor(state, e.addr, poolID); !tracked {
		return 0, ErrPoolNotTracked
	}

	tickLower := AlignTick(tick, key.TickSpacing)
	bucketKey := BucketKey{PoolID: poolID, TickLower: tickLower, ZeroForOne: zeroForOne}
	id := bucketKey.ID()

	if !bucketExists(state, e.addr, id) {
		registerBucket(state, e.addr, id, key, tickLower, zeroForOne)
	}

	pending := getPending(state, e.addr, id)
	setPending(state, e.addr, id, new(big.Int).Add(pending, amount))

	deposited := getDeposited(state, e.addr, id)
	setDeposited(state, e.addr, id, new(big.Int).Add(deposited, amount))

	if err := e.receipts.Mint(state, sender, id, amount); err != nil {
		return 0, err
	}

	input := key.Currency1
	if zeroForOne {
		input = key.Currency0
	}
	if err := dex.Transfer(state, input, sender, e.addr, amount); err != nil {
		return 0, err
	}

	data := make([]byte, 64)
	binary.BigEndian.PutUint32(data[28:32], uint32(tickLower))
	amount.FillBytes(data[32:64])
	e.emitLog(state, []common.Hash{topicOrderPlaced, common.BytesToHash(sender.Bytes()), id}, data)

	if e.log != nil {
		e.log.Debug("limit order placed",
			"owner", sender, "tickLower", tickLower, "zeroForOne", zeroForOne, "amount", amount)
	}
	return tickLower, nil
}

// Cancel withdraws the sender's entire unfilled deposit from the bucket for
// tick, burning their receipts and returning the input asset. Cancellation
// is all-or-nothing on the sender's current receipt balance. Once a fill has
// consumed the deposit the cancel is refused: the refund may only draw on
// the bucket's own pending custody, filled value is recovered through
// Redeem.
func (e *Engine) Cancel(
	state contract.StateDB,
	sender common.Address,
	key dex.PoolKey,
	tick int24,
	zeroForOne bool,
) (*big.Int, error) {
	poolID := key.ID()
	tickLower := AlignTick(tick, key.TickSpacing)
	bucketKey := BucketKey{PoolID: poolID, TickLower: tickLower, ZeroForOne: zeroForOne}
	id := bucketKey.ID()

	balance := e.receipts.BalanceOf(state, sender, id)
	if balance.Sign() == 0 {
		return nil, ErrNoOrderToCancel
	}

	pending := getPending(state, e.addr, id)
	if pending.Cmp(balance) < 0 {
		return nil, ErrOrderFilled
	}
	setPending(state, e.addr, id, new(big.Int).Sub(pending, balance))

	deposited := getDeposited(state, e.addr, id)
	setDeposited(state, e.addr, id, new(big.Int).Sub(deposited, balance))

	if err := e.receipts.Burn(state, sender, id, balance); err != nil {
		return nil, err
	}

	input := key.Currency1
	if zeroForOne {
		input = key.Currency0
	}
	if err := dex.Transfer(state, input, e.addr, sender, balance); err != nil {
		return nil, err
	}

	data := make([]byte, 32)
	balance.FillBytes(data)
	e.emitLog(state, []common.Hash{topicOrderCancelled, common.BytesToHash(sender.Bytes()), id}, data)

	if e.log != nil {
		e.log.Debug("limit order cancelled",
			"owner", sender, "tickLower", tickLower, "zeroForOne", zeroForOne, "amount", balance)
	}
	return balance, nil
}
