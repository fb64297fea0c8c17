// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package limitorder implements a take-profit limit order hook on top of the
// dex pool manager. Depositors park an input amount at a price tick; when
// trading pushes the pool's tick across that level the order executes
// against the pool automatically and the proceeds become claimable pro-rata
// by receipt holders.
package limitorder

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/davekaj/uniswap-v4-hook/dex"
)

// int24 type alias for ticks
type int24 = int32

// Gas costs for limit order operations
const (
	GasPlace        uint64 = 40_000 // Place order, first deposit may create bucket
	GasCancel       uint64 = 20_000 // Cancel order, refund deposit
	GasRedeem       uint64 = 30_000 // Redeem receipts for proceeds
	GasBucketLookup uint64 = 100    // Bucket or cursor state lookup
)

// Errors
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrPoolNotTracked       = errors.New("pool not tracked by limit order hook")
	ErrNoOrderToCancel      = errors.New("no order to cancel")
	ErrOrderFilled          = errors.New("order already filled")
	ErrNothingClaimable     = errors.New("nothing claimable")
	ErrInsufficientReceipts = errors.New("insufficient receipt balance")
	ErrZeroTotalDeposited   = errors.New("total deposited is zero")
	ErrSwapExecutionFailed  = errors.New("swap execution failed")
	ErrUnknownBucket        = errors.New("unknown bucket")
)

// BucketKey identifies one bucket: all orders at a single aligned tick and
// direction for one pool. ZeroForOne is the direction the bucket's orders
// swap when they fill.
type BucketKey struct {
	PoolID     [32]byte
	TickLower  int24
	ZeroForOne bool
}

// ID computes the deterministic bucket identifier
func (bk BucketKey) ID() [32]byte {
	h := blake3.New()
	h.Write(bk.PoolID[:])

	var tickBytes [4]byte
	binary.BigEndian.PutUint32(tickBytes[:], uint32(bk.TickLower))
	h.Write(tickBytes[:])

	if bk.ZeroForOne {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// Bucket is the aggregate state of all orders at one (pool, tick, direction)
type Bucket struct {
	Exists         bool
	Pending        *big.Int // Deposits awaiting execution; signed, zeroed on fill
	TotalDeposited *big.Int
	TotalClaimable *big.Int
	PoolKey        dex.PoolKey
	TickLower      int24
	ZeroForOne     bool
}

// InputCurrency returns the currency a bucket's depositors put up
func (b *Bucket) InputCurrency() dex.Currency {
	if b.ZeroForOne {
		return b.PoolKey.Currency0
	}
	return b.PoolKey.Currency1
}

// OutputCurrency returns the currency a filled bucket pays out
func (b *Bucket) OutputCurrency() dex.Currency {
	if b.ZeroForOne {
		return b.PoolKey.Currency1
	}
	return b.PoolKey.Currency0
}

// Event log topics, derived the same way storage keys are
var (
	topicOrderPlaced    = eventTopic("OrderPlaced(address,bytes32,int24,bool,uint256)")
	topicOrderCancelled = eventTopic("OrderCancelled(address,bytes32,uint256)")
	topicBucketFilled   = eventTopic("BucketFilled(bytes32,int24,bool,uint256,uint256)")
	topicRedeemed       = eventTopic("Redeemed(address,bytes32,uint256,uint256)")
)

func eventTopic(signature string) common.Hash {
	h := blake3.New()
	h.Write([]byte(signature))
	var topic common.Hash
	h.Digest().Read(topic[:])
	return topic
}
