// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/davekaj/uniswap-v4-hook/dex"
)

// Full-stack path against the real pool manager: initialize a hooked pool,
// provision liquidity, place an order, trigger it with a market swap, and
// redeem the proceeds.
func TestLimitOrderLifecycle(t *testing.T) {
	state := NewMockStateDB()
	pm := dex.NewPoolManager()
	engine := NewEngine(testHookAddr, pm, NewStateReceipts(testHookAddr), log.NewTestLogger(log.InfoLevel))
	require.NoError(t, pm.RegisterHook(testHookAddr, engine))

	key := testPoolKey()
	deployer := common.HexToAddress("0x2000000000000000000000000000000000000001")
	lp := common.HexToAddress("0x2000000000000000000000000000000000000002")

	tick, err := pm.Initialize(state, deployer, key, dex.TickToSqrtPriceX96(50))
	require.NoError(t, err)
	require.Equal(t, int24(50), tick)

	cursor, tracked := engine.Cursor(state, key.ID())
	require.True(t, tracked)
	require.Equal(t, int24(0), cursor)

	// Provision a wide range around the current price and settle both legs
	// into pool custody.
	fundNative(state, lp, 1<<62)
	state.AddBalanceMultiCoin(lp, dex.CoinID(key.Currency1), new(big.Int).Lsh(big.NewInt(1), 70))

	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	lpDelta, err := pm.ModifyLiquidity(state, lp, key, dex.ModifyLiquidityParams{
		TickLower:      -600,
		TickUpper:      600,
		LiquidityDelta: liquidity,
	})
	require.NoError(t, err)
	require.Equal(t, 1, lpDelta.Amount0.Sign())
	require.Equal(t, 1, lpDelta.Amount1.Sign())
	require.NoError(t, pm.Settle(state, lp, key.Currency0, lpDelta.Amount0))
	require.NoError(t, pm.Settle(state, lp, key.Currency1, lpDelta.Amount1))

	// Alice parks 1000 of the native asset to sell once the price crosses
	// past the 60 bucket.
	fundNative(state, alice, 1_000)
	tickLower, err := engine.Place(state, alice, key, 70, true, big.NewInt(1_000))
	require.NoError(t, err)
	require.Equal(t, int24(60), tickLower)
	require.Equal(t, uint64(1_000), state.GetBalance(testHookAddr).Uint64())

	// Bob pushes the price up past the bucket boundary. The hook fills
	// alice's order inside the same swap.
	bobIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	state.AddBalanceMultiCoin(bob, dex.CoinID(key.Currency1), bobIn)

	delta, err := pm.Swap(state, bob, key, dex.SwapParams{
		ZeroForOne:        false,
		AmountSpecified:   bobIn,
		SqrtPriceLimitX96: dex.TickToSqrtPriceX96(130),
	})
	require.NoError(t, err)
	require.NoError(t, pm.Settle(state, bob, key.Currency1, delta.Amount1))
	require.NoError(t, pm.Take(state, key.Currency0, bob, new(big.Int).Neg(delta.Amount0)))

	id := BucketKey{PoolID: key.ID(), TickLower: 60, ZeroForOne: true}.ID()
	bucket, err := engine.GetBucket(state, id)
	require.NoError(t, err)
	require.Zero(t, bucket.Pending.Sign())

	// Filled around tick 130 the 1000 native sold for slightly more than
	// 1000 of currency1.
	require.Equal(t, 1, bucket.TotalClaimable.Cmp(big.NewInt(1_000)))
	require.Equal(t, -1, bucket.TotalClaimable.Cmp(big.NewInt(1_100)))
	require.Equal(t, uint64(0), state.GetBalance(testHookAddr).Uint64())
	require.Zero(t, tokenBalance(state, testHookAddr).Cmp(bucket.TotalClaimable))

	cursor, _ = engine.Cursor(state, key.ID())
	require.Equal(t, int24(120), cursor)

	// The fill swapped back against the pool, so the price sits at or just
	// below bob's limit.
	pool, err := pm.GetPool(state, key)
	require.NoError(t, err)
	require.GreaterOrEqual(t, pool.Tick, int24(120))
	require.LessOrEqual(t, pool.Tick, int24(130))

	// Redeem the full receipt balance for the whole payout.
	payout, err := engine.Redeem(state, alice, id, big.NewInt(1_000), alice)
	require.NoError(t, err)
	require.Zero(t, payout.Cmp(bucket.TotalClaimable))
	require.Zero(t, tokenBalance(state, alice).Cmp(payout))
	require.Zero(t, tokenBalance(state, testHookAddr).Sign())
}
