// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
)

// Redeem burns amount of the sender's receipts for a bucket and pays out
// the proportional share of the bucket's claimable proceeds to destination.
//
// payout = floor(amount * totalClaimable / totalDeposited). Floor, never
// round up: the sum of all payouts must never exceed what the bucket
// actually received, at the cost of at most one unit of dust per redemption.
func (e *Engine) Redeem(
	state contract.StateDB,
	sender common.Address,
	id [32]byte,
	amount *big.Int,
	destination common.Address,
) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	bucket, err := loadBucket(state, e.addr, id)
	if err != nil {
		return nil, err
	}

	if bucket.TotalClaimable.Sign() == 0 {
		return nil, ErrNothingClaimable
	}

	balance := e.receipts.BalanceOf(state, sender, id)
	if balance.Cmp(amount) < 0 {
		return nil, ErrInsufficientReceipts
	}

	// Unreachable given claimable > 0 implies a prior deposit, but guard
	// explicitly rather than trusting the invariant.
	if bucket.TotalDeposited.Sign() == 0 {
		return nil, ErrZeroTotalDeposited
	}

	payout := new(big.Int).Mul(amount, bucket.TotalClaimable)
	payout.Div(payout, bucket.TotalDeposited)

	setClaimable(state, e.addr, id, new(big.Int).Sub(bucket.TotalClaimable, payout))
	setDeposited(state, e.addr, id, new(big.Int).Sub(bucket.TotalDeposited, amount))

	if err := e.receipts.Burn(state, sender, id, amount); err != nil {
		return nil, err
	}

	if err := dex.Transfer(state, bucket.OutputCurrency(), e.addr, destination, payout); err != nil {
		return nil, err
	}

	data := make([]byte, 64)
	amount.FillBytes(data[0:32])
	payout.FillBytes(data[32:64])
	e.emitLog(state, []common.Hash{topicRedeemed, common.BytesToHash(sender.Bytes()), id}, data)

	if e.log != nil {
		e.log.Debug("receipts redeemed",
			"owner", sender, "amount", amount, "payout", payout, "to", destination)
	}
	return payout, nil
}
