// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
)

// AfterInitialize seeds the pool's tick cursor at the aligned tick of the
// starting price.
func (e *Engine) AfterInitialize(
	state contract.StateDB,
	sender common.Address,
	key dex.PoolKey,
	sqrtPriceX96 *big.Int,
	tick int24,
) error {
	poolID := key.ID()
	tickLower := AlignTick(tick, key.TickSpacing)
	setCursor(state, e.addr, poolID, tickLower)

	if e.log != nil {
		e.log.Debug("tracking pool", "pool", common.Hash(poolID), "tickLower", tickLower)
	}
	return nil
}

// AfterSwap is the crossing-detection pass. It compares the pool's previous
// aligned tick with the new one, fills every bucket boundary the price
// crossed, and advances the cursor. Buckets fill in the direction opposite
// the triggering trade: a price rise fills sellers of currency0, a fall
// fills sellers of currency1.
//
// The whole pass is atomic. A snapshot is taken before any fill and
// reverted if one fails; the error then propagates and aborts the
// triggering swap as well.
func (e *Engine) AfterSwap(
	state contract.StateDB,
	sender common.Address,
	key dex.PoolKey,
	params dex.SwapParams,
	delta dex.BalanceDelta,
	newTick int24,
) error {
	// The engine's own fill swaps re-enter here; nothing to do for them.
	if sender == e.addr || e.filling {
		return nil
	}

	poolID := key.ID()
	lastLower, tracked := getCursor(state, e.addr, poolID)
	if !tracked {
		return nil
	}

	currentLower := AlignTick(newTick, key.TickSpacing)
	if currentLower == lastLower {
		setCursor(state, e.addr, poolID, currentLower)
		return nil
	}

	e.filling = true
	defer func() { e.filling = false }()

	snapshot := state.Snapshot()
	fillDir := !params.ZeroForOne
	spacing := key.TickSpacing

	// Half-open walk: inclusive of the old cursor, exclusive of the new.
	if lastLower < currentLower {
		for t := lastLower; t < currentLower; t += spacing {
			if err := e.fillBucket(state, key, poolID, t, fillDir); err != nil {
				state.RevertToSnapshot(snapshot)
				return err
			}
		}
	} else {
		for t := lastLower; t > currentLower; t -= spacing {
			if err := e.fillBucket(state, key, poolID, t, fillDir); err != nil {
				state.RevertToSnapshot(snapshot)
				return err
			}
		}
	}

	setCursor(state, e.addr, poolID, currentLower)
	return nil
}

// fillBucket executes a bucket's full pending amount against the pool.
// Pending is zeroed before the swap is issued so a re-entrant pass can
// never repeat the same fill. The swap runs with the price limit pinned to
// the extreme end of the valid range: the fill takes whatever the current
// price gives, it is not meant to be blocked by slippage.
func (e *Engine) fillBucket(
	state contract.StateDB,
	key dex.PoolKey,
	poolID [32]byte,
	tickLower int24,
	zeroForOne bool,
) error {
	bucketKey := BucketKey{PoolID: poolID, TickLower: tickLower, ZeroForOne: zeroForOne}
	id := bucketKey.ID()

	pending := getPending(state, e.addr, id)
	if pending.Sign() <= 0 {
		return nil
	}
	setPending(state, e.addr, id, big.NewInt(0))

	limit := new(big.Int).Sub(dex.MaxSqrtRatio, big.NewInt(1))
	if zeroForOne {
		limit = new(big.Int).Add(dex.MinSqrtRatio, big.NewInt(1))
	}
	params := dex.SwapParams{
		ZeroForOne:        zeroForOne,
		AmountSpecified:   pending,
		SqrtPriceLimitX96: limit,
	}

	swapDelta, err := e.gateway.Swap(state, e.addr, key, params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSwapExecutionFailed, err)
	}

	received, err := e.settleFill(state, key, swapDelta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSwapExecutionFailed, err)
	}

	claimable := getClaimable(state, e.addr, id)
	setClaimable(state, e.addr, id, new(big.Int).Add(claimable, received))

	data := make([]byte, 64)
	binary.BigEndian.PutUint32(data[28:32], uint32(tickLower))
	received.FillBytes(data[32:64])
	e.emitLog(state, []common.Hash{topicBucketFilled, id}, data)

	if e.log != nil {
		e.log.Info("bucket filled",
			"pool", common.Hash(poolID), "tickLower", tickLower, "zeroForOne", zeroForOne,
			"amountIn", pending, "amountOut", received)
	}
	return nil
}

// settleFill settles the swap's signed deltas against the hook: positive
// amounts are paid into pool custody, negative amounts are taken into hook
// custody. Returns the output amount actually received.
func (e *Engine) settleFill(
	state contract.StateDB,
	key dex.PoolKey,
	delta dex.BalanceDelta,
) (*big.Int, error) {
	received := new(big.Int)

	currencies := [2]dex.Currency{key.Currency0, key.Currency1}
	amounts := [2]*big.Int{delta.Amount0, delta.Amount1}
	for i := range currencies {
		switch amounts[i].Sign() {
		case 1:
			if err := e.gateway.Settle(state, e.addr, currencies[i], amounts[i]); err != nil {
				return nil, err
			}
		case -1:
			credit := new(big.Int).Abs(amounts[i])
			if err := e.gateway.Take(state, currencies[i], e.addr, credit); err != nil {
				return nil, err
			}
			received.Add(received, credit)
		}
	}

	return received, nil
}
