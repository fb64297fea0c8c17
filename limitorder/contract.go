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

// Method selectors for the limit order hook
const (
	SelectorPlace     uint32 = 0x01000000 // place(PoolKey,int24,bool,uint256)
	SelectorCancel    uint32 = 0x02000000 // cancel(PoolKey,int24,bool)
	SelectorRedeem    uint32 = 0x03000000 // redeem(bytes32,uint256,address)
	SelectorGetBucket uint32 = 0x08000000 // getBucket(bytes32)
	SelectorBalanceOf uint32 = 0x09000000 // balanceOf(bytes32,address)
	SelectorCursor    uint32 = 0x0a000000 // cursor(bytes32)
)

// LimitOrderContract implements the limit order hook precompile
type LimitOrderContract struct {
	engine *Engine
}

// NewContract wraps an engine in the precompile dispatch surface
func NewContract(engine *Engine) *LimitOrderContract {
	return &LimitOrderContract{engine: engine}
}

// Engine returns the contract's engine
func (c *LimitOrderContract) Engine() *Engine {
	return c.engine
}

// Run executes the precompile
func (c *LimitOrderContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}

	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	switch selector {
	case SelectorPlace:
		return c.runPlace(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorCancel:
		return c.runCancel(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorRedeem:
		return c.runRedeem(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorGetBucket:
		return c.runGetBucket(accessibleState, data, suppliedGas)
	case SelectorBalanceOf:
		return c.runBalanceOf(accessibleState, data, suppliedGas)
	case SelectorCursor:
		return c.runCursor(accessibleState, data, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *LimitOrderContract) runPlace(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasPlace {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasPlace

	if len(input) < 256 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	key, err := dex.DecodePoolKey(input[:160])
	if err != nil {
		return nil, remaining, err
	}
	tick := int24(dex.ParseSignedWord(input[160:192]).Int64())
	zeroForOne := input[223] == 1
	amount := new(big.Int).SetBytes(input[224:256])

	tickLower, err := c.engine.Place(state.GetStateDB(), caller, key, tick, zeroForOne, amount)
	if err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 32)
	putSignedWord(result, big.NewInt(int64(tickLower)))
	return result, remaining, nil
}

func (c *LimitOrderContract) runCancel(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasCancel {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasCancel

	if len(input) < 224 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	key, err := dex.DecodePoolKey(input[:160])
	if err != nil {
		return nil, remaining, err
	}
	tick := int24(dex.ParseSignedWord(input[160:192]).Int64())
	zeroForOne := input[223] == 1

	amount, err := c.engine.Cancel(state.GetStateDB(), caller, key, tick, zeroForOne)
	if err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 32)
	amount.FillBytes(result)
	return result, remaining, nil
}

func (c *LimitOrderContract) runRedeem(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasRedeem {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasRedeem

	if len(input) < 96 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	var id [32]byte
	copy(id[:], input[0:32])
	amount := new(big.Int).SetBytes(input[32:64])
	destination := common.BytesToAddress(input[76:96])

	payout, err := c.engine.Redeem(state.GetStateDB(), caller, id, amount, destination)
	if err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 32)
	payout.FillBytes(result)
	return result, remaining, nil
}

func (c *LimitOrderContract) runGetBucket(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasBucketLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasBucketLookup

	if len(input) < 32 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	var id [32]byte
	copy(id[:], input[0:32])

	bucket, err := c.engine.GetBucket(state.GetStateDB(), id)
	if err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 160)
	putSignedWord(result[0:32], bucket.Pending)
	bucket.TotalDeposited.FillBytes(result[32:64])
	bucket.TotalClaimable.FillBytes(result[64:96])
	putSignedWord(result[96:128], big.NewInt(int64(bucket.TickLower)))
	if bucket.ZeroForOne {
		result[159] = 1
	}
	return result, remaining, nil
}

func (c *LimitOrderContract) runBalanceOf(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasBucketLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasBucketLookup

	if len(input) < 64 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	var id [32]byte
	copy(id[:], input[0:32])
	owner := common.BytesToAddress(input[44:64])

	balance := c.engine.receipts.BalanceOf(state.GetStateDB(), owner, id)

	result := make([]byte, 32)
	balance.FillBytes(result)
	return result, remaining, nil
}

func (c *LimitOrderContract) runCursor(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasBucketLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasBucketLookup

	if len(input) < 32 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	var poolID [32]byte
	copy(poolID[:], input[0:32])

	tickLower, tracked := c.engine.Cursor(state.GetStateDB(), poolID)
	if !tracked {
		return nil, remaining, ErrPoolNotTracked
	}

	result := make([]byte, 32)
	putSignedWord(result, big.NewInt(int64(tickLower)))
	return result, remaining, nil
}

// RequiredGas returns the gas required for the precompile input
func (c *LimitOrderContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasPlace
	}

	switch binary.BigEndian.Uint32(input[:4]) {
	case SelectorPlace:
		return GasPlace
	case SelectorCancel:
		return GasCancel
	case SelectorRedeem:
		return GasRedeem
	case SelectorGetBucket, SelectorBalanceOf, SelectorCursor:
		return GasBucketLookup
	default:
		return GasPlace
	}
}

// putSignedWord writes v into a 32-byte word as two's-complement int256
func putSignedWord(b []byte, v *big.Int) {
	if v.Sign() < 0 {
		new(big.Int).Add(slotModulus, v).FillBytes(b)
		return
	}
	v.FillBytes(b)
}
