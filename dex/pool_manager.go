// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	"github.com/zeebo/blake3"

	"github.com/davekaj/uniswap-v4-hook/contract"
)

// Precompile address as bytes (LP-9010 LXPool)
var poolManagerAddr = common.HexToAddress(LXPoolAddress)

// Storage key prefixes for pool manager state
var (
	poolStatePrefix     = []byte("pool")
	poolLiquidityPrefix = []byte("pliq")
	positionPrefix      = []byte("posn")
)

var feeDenominator = big.NewInt(1_000_000)

// PoolManager implements the singleton pool manager precompile.
// All pool and position state lives in EVM storage slots under the
// precompile's address, so journal snapshot/revert covers it. The only
// in-memory state is the hook registry, populated once at init time.
type PoolManager struct {
	// hooks maps hook addresses to their Go implementations
	hooks map[common.Address]Hook
}

// NewPoolManager creates a new pool manager instance
func NewPoolManager() *PoolManager {
	return &PoolManager{
		hooks: make(map[common.Address]Hook),
	}
}

// Address returns the pool manager's precompile address
func (pm *PoolManager) Address() common.Address {
	return poolManagerAddr
}

// RegisterHook binds a Go hook implementation to its address. The address
// must encode at least one capability flag in its first two bytes.
func (pm *PoolManager) RegisterHook(addr common.Address, hook Hook) error {
	if AddressFlags(addr) == 0 {
		return ErrHookInvalidAddress
	}
	pm.hooks[addr] = hook
	return nil
}

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// =========================================================================
// Pool Initialization
// =========================================================================

// Initialize creates a new pool at the given starting price and returns the
// tick corresponding to that price.
func (pm *PoolManager) Initialize(
	state contract.StateDB,
	sender common.Address,
	key PoolKey,
	sqrtPriceX96 *big.Int,
) (int24, error) {
	if !areCurrenciesSorted(key.Currency0, key.Currency1) {
		return 0, ErrCurrencyNotSorted
	}
	if key.Fee > FeeMax {
		return 0, ErrInvalidFee
	}
	if key.TickSpacing <= 0 {
		return 0, ErrInvalidTickRange
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return 0, ErrInvalidSqrtPrice
	}

	poolId := key.ID()
	pool := pm.getPool(state, poolId)
	if pool.IsInitialized() {
		return 0, ErrPoolAlreadyInitialized
	}

	tick := SqrtPriceX96ToTick(sqrtPriceX96)

	pool.SqrtPriceX96 = new(big.Int).Set(sqrtPriceX96)
	pool.Tick = tick
	pool.Liquidity = big.NewInt(0)
	pm.setPool(state, poolId, pool)

	if hook, ok := pm.dispatchTarget(key, HookAfterInitialize); ok {
		if err := hook.AfterInitialize(state, sender, key, sqrtPriceX96, tick); err != nil {
			return 0, err
		}
	}

	return tick, nil
}

// =========================================================================
// Swaps
// =========================================================================

// Swap executes an exact-input swap against a pool, moving the price toward
// SqrtPriceLimitX96 and stopping there if the input would push past it.
// Returns signed deltas: positive = caller owes the pool, negative = the
// pool owes the caller. The caller settles via Settle/Take.
func (pm *PoolManager) Swap(
	state contract.StateDB,
	sender common.Address,
	key PoolKey,
	params SwapParams,
) (BalanceDelta, error) {
	poolId := key.ID()
	pool := pm.getPool(state, poolId)
	if !pool.IsInitialized() {
		return ZeroBalanceDelta(), ErrPoolNotInitialized
	}

	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return ZeroBalanceDelta(), ErrInvalidAmount
	}
	if params.AmountSpecified.Sign() < 0 {
		return ZeroBalanceDelta(), ErrExactOutputUnsupported
	}

	limit := params.SqrtPriceLimitX96
	if limit == nil {
		return ZeroBalanceDelta(), ErrInvalidSqrtPrice
	}
	if params.ZeroForOne {
		if limit.Cmp(pool.SqrtPriceX96) >= 0 || limit.Cmp(MinSqrtRatio) <= 0 {
			return ZeroBalanceDelta(), ErrPriceLimitReached
		}
	} else {
		if limit.Cmp(pool.SqrtPriceX96) <= 0 || limit.Cmp(MaxSqrtRatio) >= 0 {
			return ZeroBalanceDelta(), ErrPriceLimitReached
		}
	}

	delta, newSqrtPrice := computeSwap(pool, key.Fee, params)
	newTick := SqrtPriceX96ToTick(newSqrtPrice)

	pool.SqrtPriceX96 = newSqrtPrice
	pool.Tick = newTick
	pm.setPool(state, poolId, pool)

	if hook, ok := pm.dispatchTarget(key, HookAfterSwap); ok {
		if err := hook.AfterSwap(state, sender, key, params, delta, newTick); err != nil {
			return ZeroBalanceDelta(), err
		}
	}

	return delta, nil
}

// computeSwap runs single-range constant-liquidity swap math. With zero
// liquidity the price jumps to the limit and no amounts change hands.
func computeSwap(pool *Pool, fee uint24, params SwapParams) (BalanceDelta, *big.Int) {
	sqrtP := pool.SqrtPriceX96
	liquidity := pool.Liquidity
	limit := params.SqrtPriceLimitX96

	if liquidity.Sign() == 0 {
		return ZeroBalanceDelta(), new(big.Int).Set(limit)
	}

	// Fee is taken from the input before it moves the price.
	effIn := new(big.Int).Mul(params.AmountSpecified, big.NewInt(int64(1_000_000-fee)))
	effIn.Div(effIn, feeDenominator)

	var newSqrt, effUsed, amountOut *big.Int

	if params.ZeroForOne {
		// sqrtP' = L * sqrtP * Q96 / (L * Q96 + in * sqrtP)
		num := new(big.Int).Mul(liquidity, sqrtP)
		num.Mul(num, Q96)
		den := new(big.Int).Mul(liquidity, Q96)
		den.Add(den, new(big.Int).Mul(effIn, sqrtP))
		newSqrt = num.Div(num, den)

		effUsed = effIn
		if newSqrt.Cmp(limit) < 0 {
			newSqrt = new(big.Int).Set(limit)
			// in = L * Q96 * (sqrtP - limit) / (sqrtP * limit)
			effUsed = new(big.Int).Mul(liquidity, Q96)
			effUsed.Mul(effUsed, new(big.Int).Sub(sqrtP, limit))
			effUsed.Div(effUsed, new(big.Int).Mul(sqrtP, limit))
		}

		// out = L * (sqrtP - sqrtP') / Q96
		amountOut = new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtP, newSqrt))
		amountOut.Div(amountOut, Q96)

		in := grossUp(effUsed, effIn, params.AmountSpecified, fee)
		return BalanceDelta{Amount0: in, Amount1: new(big.Int).Neg(amountOut)}, newSqrt
	}

	// sqrtP' = sqrtP + in * Q96 / L
	step := new(big.Int).Mul(effIn, Q96)
	step.Div(step, liquidity)
	newSqrt = new(big.Int).Add(sqrtP, step)

	effUsed = effIn
	if newSqrt.Cmp(limit) > 0 {
		newSqrt = new(big.Int).Set(limit)
		// in = L * (limit - sqrtP) / Q96
		effUsed = new(big.Int).Mul(liquidity, new(big.Int).Sub(limit, sqrtP))
		effUsed.Div(effUsed, Q96)
	}

	// out = L * Q96 * (sqrtP' - sqrtP) / (sqrtP * sqrtP')
	amountOut = new(big.Int).Mul(liquidity, Q96)
	amountOut.Mul(amountOut, new(big.Int).Sub(newSqrt, sqrtP))
	amountOut.Div(amountOut, new(big.Int).Mul(sqrtP, newSqrt))

	in := grossUp(effUsed, effIn, params.AmountSpecified, fee)
	return BalanceDelta{Amount0: new(big.Int).Neg(amountOut), Amount1: in}, newSqrt
}

// grossUp converts the fee-adjusted input actually consumed back to the
// gross amount the caller owes. A fully consumed input owes exactly what
// was specified, avoiding round-trip rounding.
func grossUp(effUsed, effIn, specified *big.Int, fee uint24) *big.Int {
	if effUsed.Cmp(effIn) == 0 {
		return new(big.Int).Set(specified)
	}
	gross := new(big.Int).Mul(effUsed, feeDenominator)
	return gross.Div(gross, big.NewInt(int64(1_000_000-fee)))
}

// =========================================================================
// Liquidity
// =========================================================================

// ModifyLiquidity adds or removes liquidity in a tick range and returns the
// caller's signed token deltas. The caller settles via Settle/Take.
func (pm *PoolManager) ModifyLiquidity(
	state contract.StateDB,
	sender common.Address,
	key PoolKey,
	params ModifyLiquidityParams,
) (BalanceDelta, error) {
	if params.TickLower >= params.TickUpper {
		return ZeroBalanceDelta(), ErrInvalidTickRange
	}
	if params.TickLower < MinTick || params.TickUpper > MaxTick {
		return ZeroBalanceDelta(), ErrTickOutOfRange
	}
	if params.LiquidityDelta == nil || params.LiquidityDelta.Sign() == 0 {
		return ZeroBalanceDelta(), ErrInvalidAmount
	}

	poolId := key.ID()
	pool := pm.getPool(state, poolId)
	if !pool.IsInitialized() {
		return ZeroBalanceDelta(), ErrPoolNotInitialized
	}

	positionKey := PositionKey(sender, params.TickLower, params.TickUpper, params.Salt)
	position := pm.getPosition(state, positionKey)

	newLiquidity := new(big.Int).Add(position.Liquidity, params.LiquidityDelta)
	if newLiquidity.Sign() < 0 {
		return ZeroBalanceDelta(), ErrInsufficientLiquidity
	}
	position.Liquidity = newLiquidity
	position.Owner = sender
	position.TickLower = params.TickLower
	position.TickUpper = params.TickUpper
	pm.setPosition(state, positionKey, position)

	if params.TickLower <= pool.Tick && pool.Tick < params.TickUpper {
		pool.Liquidity = new(big.Int).Add(pool.Liquidity, params.LiquidityDelta)
		if pool.Liquidity.Sign() < 0 {
			return ZeroBalanceDelta(), ErrInsufficientLiquidity
		}
	}
	pm.setPool(state, poolId, pool)

	delta := liquidityAmounts(pool, params)
	return delta, nil
}

// liquidityAmounts computes the token amounts for a liquidity change using
// the range's sqrt price bounds, clamped to the current pool price.
func liquidityAmounts(pool *Pool, params ModifyLiquidityParams) BalanceDelta {
	sqrtL := TickToSqrtPriceX96(params.TickLower)
	sqrtU := TickToSqrtPriceX96(params.TickUpper)

	sqrtC := new(big.Int).Set(pool.SqrtPriceX96)
	if sqrtC.Cmp(sqrtL) < 0 {
		sqrtC.Set(sqrtL)
	}
	if sqrtC.Cmp(sqrtU) > 0 {
		sqrtC.Set(sqrtU)
	}

	liquidity := new(big.Int).Abs(params.LiquidityDelta)

	// amount0 = L * Q96 * (sqrtU - sqrtC) / (sqrtU * sqrtC)
	amount0 := new(big.Int).Mul(liquidity, Q96)
	amount0.Mul(amount0, new(big.Int).Sub(sqrtU, sqrtC))
	amount0.Div(amount0, new(big.Int).Mul(sqrtU, sqrtC))

	// amount1 = L * (sqrtC - sqrtL) / Q96
	amount1 := new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtC, sqrtL))
	amount1.Div(amount1, Q96)

	if params.LiquidityDelta.Sign() < 0 {
		amount0.Neg(amount0)
		amount1.Neg(amount1)
	}
	return BalanceDelta{Amount0: amount0, Amount1: amount1}
}

// =========================================================================
// Settlement
// =========================================================================

// Settle pays a positive delta: transfers amount of currency from the payer
// into pool custody.
func (pm *PoolManager) Settle(state contract.StateDB, from common.Address, currency Currency, amount *big.Int) error {
	return Transfer(state, currency, from, poolManagerAddr, amount)
}

// Take claims a negative delta: transfers amount of currency out of pool
// custody to the recipient.
func (pm *PoolManager) Take(state contract.StateDB, currency Currency, to common.Address, amount *big.Int) error {
	return Transfer(state, currency, poolManagerAddr, to, amount)
}

// Transfer moves an amount of a currency between accounts, native balances
// for the zero address and multi-coin balances otherwise.
func Transfer(state contract.StateDB, currency Currency, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}

	if currency.IsNative() {
		value, overflow := uint256.FromBig(amount)
		if overflow {
			return ErrInvalidAmount
		}
		if state.GetBalance(from).Cmp(value) < 0 {
			return ErrInsufficientBalance
		}
		state.SubBalance(from, value, tracing.BalanceChangeTransfer)
		state.AddBalance(to, value, tracing.BalanceChangeTransfer)
		return nil
	}

	coinID := CoinID(currency)
	if state.GetBalanceMultiCoin(from, coinID).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	state.SubBalanceMultiCoin(from, coinID, amount)
	state.AddBalanceMultiCoin(to, coinID, amount)
	return nil
}

// =========================================================================
// State Management
// =========================================================================

// getPool reads pool state from storage. No in-memory cache: state must be
// re-read so journal reverts stay authoritative.
func (pm *PoolManager) getPool(state contract.StateDB, poolId [32]byte) *Pool {
	pool := NewPool()

	sqrtPriceKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("sqrtPrice")...))
	sqrtPriceHash := state.GetState(poolManagerAddr, sqrtPriceKey)
	if sqrtPriceHash != (common.Hash{}) {
		pool.SqrtPriceX96 = new(big.Int).SetBytes(sqrtPriceHash[:])
	}

	tickKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("tick")...))
	tickHash := state.GetState(poolManagerAddr, tickKey)
	if tickHash != (common.Hash{}) {
		pool.Tick = int24(binary.BigEndian.Uint32(tickHash[28:32]))
	}

	liqKey := makeStorageKey(poolLiquidityPrefix, poolId[:])
	liqHash := state.GetState(poolManagerAddr, liqKey)
	if liqHash != (common.Hash{}) {
		pool.Liquidity = new(big.Int).SetBytes(liqHash[:])
	}

	return pool
}

// setPool writes pool state to storage
func (pm *PoolManager) setPool(state contract.StateDB, poolId [32]byte, pool *Pool) {
	sqrtPriceKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("sqrtPrice")...))
	var sqrtPriceHash common.Hash
	pool.SqrtPriceX96.FillBytes(sqrtPriceHash[:])
	state.SetState(poolManagerAddr, sqrtPriceKey, sqrtPriceHash)

	tickKey := makeStorageKey(poolStatePrefix, append(poolId[:], []byte("tick")...))
	var tickHash common.Hash
	binary.BigEndian.PutUint32(tickHash[28:32], uint32(pool.Tick))
	state.SetState(poolManagerAddr, tickKey, tickHash)

	liqKey := makeStorageKey(poolLiquidityPrefix, poolId[:])
	var liqHash common.Hash
	pool.Liquidity.FillBytes(liqHash[:])
	state.SetState(poolManagerAddr, liqKey, liqHash)
}

// getPosition reads position state from storage
func (pm *PoolManager) getPosition(state contract.StateDB, positionKey [32]byte) *Position {
	pos := &Position{Liquidity: big.NewInt(0)}

	liqKey := makeStorageKey(positionPrefix, append(positionKey[:], []byte("liq")...))
	liqHash := state.GetState(poolManagerAddr, liqKey)
	if liqHash != (common.Hash{}) {
		pos.Liquidity = new(big.Int).SetBytes(liqHash[:])
	}

	return pos
}

// setPosition writes position state to storage
func (pm *PoolManager) setPosition(state contract.StateDB, positionKey [32]byte, pos *Position) {
	liqKey := makeStorageKey(positionPrefix, append(positionKey[:], []byte("liq")...))
	var liqHash common.Hash
	pos.Liquidity.FillBytes(liqHash[:])
	state.SetState(poolManagerAddr, liqKey, liqHash)
}

// =========================================================================
// Helper Functions
// =========================================================================

// dispatchTarget resolves the registered hook for a pool key if its address
// encodes the given capability.
func (pm *PoolManager) dispatchTarget(key PoolKey, flag HookFlags) (Hook, bool) {
	if key.Hooks == (common.Address{}) {
		return nil, false
	}
	if !HasPermission(key.Hooks, flag) {
		return nil, false
	}
	hook, ok := pm.hooks[key.Hooks]
	return hook, ok
}

// areCurrenciesSorted returns true if currencies are properly sorted
func areCurrenciesSorted(c0, c1 Currency) bool {
	return bytes.Compare(c0.Address.Bytes(), c1.Address.Bytes()) < 0
}

// SqrtPriceX96ToTick converts sqrt price to tick using binary search:
// TickToSqrtPriceX96(tick) <= sqrtPriceX96 < TickToSqrtPriceX96(tick+1)
func SqrtPriceX96ToTick(sqrtPriceX96 *big.Int) int24 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}

	if sqrtPriceX96.Cmp(MinSqrtRatio) <= 0 {
		return MinTick
	}
	if sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return MaxTick
	}

	low := MinTick
	high := MaxTick

	for low < high {
		mid := low + (high-low+1)/2
		sqrtPriceMid := TickToSqrtPriceX96(mid)

		if sqrtPriceMid.Cmp(sqrtPriceX96) <= 0 {
			low = mid
		} else {
			high = mid - 1
		}
	}

	return low
}

// sqrtRatioMagics[i] holds sqrt(1.0001^-(2^i)) in Q128, the Uniswap v3
// TickMath per-bit factors. Bits 0..19 cover the full |tick| range.
var sqrtRatioMagics = [20]*big.Int{
	hexBig("fffcb933bd6fad37aa2d162d1a594001"),
	hexBig("fff97272373d413259a46990580e213a"),
	hexBig("fff2e50f5f656932ef12357cf3c7fdcc"),
	hexBig("ffe5caca7e10e4e61c3624eaa0941cd0"),
	hexBig("ffcb9843d60f6159c9db58835c926644"),
	hexBig("ff973b41fa98c081472e6896dfb254c0"),
	hexBig("ff2ea16466c96a3843ec78b326b52861"),
	hexBig("fe5dee046a99a2a811c461f1969c3053"),
	hexBig("fcbe86c7900a88aedcffc83b479aa3a4"),
	hexBig("f987a7253ac413176f2b074cf7815e54"),
	hexBig("f3392b0822b70005940c7a398e4b70f3"),
	hexBig("e7159475a2c29b7443b29c7fa6e889d9"),
	hexBig("d097f3bdfd2022b8845ad8f792aa5825"),
	hexBig("a9f746462d870fdf8a65dc1f90e061e5"),
	hexBig("70d869a156d2a1b890bb3df62baf32f7"),
	hexBig("31be135f97d08fd981231505542fcfa6"),
	hexBig("9aa508b5b7a84e1c677de54f3e99bc9"),
	hexBig("5d6af8dedb81196699c329225ee604"),
	hexBig("2216e584f5fa1ea926041bedfe98"),
	hexBig("48a170391f7dc42444e8fa2"),
}

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	maskQ32    = new(big.Int).SetUint64(1<<32 - 1)
)

func hexBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("bad sqrt ratio constant: " + s)
	}
	return v
}

// TickToSqrtPriceX96 converts tick to sqrt price (Q64.96 format):
// sqrtPrice = sqrt(1.0001^tick) * 2^96
func TickToSqrtPriceX96(tick int24) *big.Int {
	absTick := tick
	if tick < 0 {
		absTick = -tick
	}

	// Accumulate sqrt(1.0001^-absTick) in Q128 from the per-bit factors,
	// then invert for positive ticks.
	ratio := new(big.Int).Lsh(big.NewInt(1), 128)
	for i, magic := range sqrtRatioMagics {
		if int(absTick)&(1<<i) != 0 {
			ratio.Mul(ratio, magic)
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio = new(big.Int).Div(maxUint256, ratio)
	}

	// Q128 -> Q96, rounding up so the result round-trips through
	// SqrtPriceX96ToTick.
	result := new(big.Int).Rsh(ratio, 32)
	if new(big.Int).And(ratio, maskQ32).Sign() != 0 {
		result.Add(result, big.NewInt(1))
	}
	return result
}

// =========================================================================
// View Functions
// =========================================================================

// GetPool returns the current state of a pool
func (pm *PoolManager) GetPool(state contract.StateDB, key PoolKey) (*Pool, error) {
	pool := pm.getPool(state, key.ID())
	if !pool.IsInitialized() {
		return nil, ErrPoolNotInitialized
	}
	return pool, nil
}

// GetPosition returns a liquidity position
func (pm *PoolManager) GetPosition(
	state contract.StateDB,
	owner common.Address,
	tickLower, tickUpper int24,
	salt [32]byte,
) *Position {
	return pm.getPosition(state, PositionKey(owner, tickLower, tickUpper, salt))
}
