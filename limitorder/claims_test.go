// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/davekaj/uniswap-v4-hook/dex"
)

// fillTestBucket places deposits for alice and bob in the same bucket and
// fills it for the given output amount. Returns the bucket id.
func fillTestBucket(t *testing.T, engine *Engine, gateway *stubGateway, state *MockStateDB, aliceIn, bobIn, out int64) [32]byte {
	t.Helper()
	key := testPoolKey()
	trackPool(engine, state, key, 50)

	fundNative(state, alice, uint64(aliceIn))
	fundNative(state, bob, uint64(bobIn))
	fundToken(state, testPoolAddr, 1_000_000)

	_, err := engine.Place(state, alice, key, 70, true, big.NewInt(aliceIn))
	require.NoError(t, err)
	_, err = engine.Place(state, bob, key, 70, true, big.NewInt(bobIn))
	require.NoError(t, err)

	gateway.outputs = []*big.Int{big.NewInt(out)}
	err = engine.AfterSwap(state, carol, key, dex.SwapParams{ZeroForOne: false}, dex.ZeroBalanceDelta(), 130)
	require.NoError(t, err)

	return BucketKey{PoolID: key.ID(), TickLower: 60, ZeroForOne: true}.ID()
}

func TestRedeemProRata(t *testing.T) {
	engine, gateway, state := newTestEngine()
	id := fillTestBucket(t, engine, gateway, state, 300, 700, 500)

	payout, err := engine.Redeem(state, alice, id, big.NewInt(300), alice)
	require.NoError(t, err)
	require.Equal(t, int64(150), payout.Int64())
	require.Equal(t, int64(150), tokenBalance(state, alice).Int64())

	payout, err = engine.Redeem(state, bob, id, big.NewInt(700), bob)
	require.NoError(t, err)
	require.Equal(t, int64(350), payout.Int64())
	require.Equal(t, int64(350), tokenBalance(state, bob).Int64())

	// Bucket fully drained
	bucket, err := engine.GetBucket(state, id)
	require.NoError(t, err)
	require.Zero(t, bucket.TotalClaimable.Sign())
	require.Zero(t, bucket.TotalDeposited.Sign())
	require.Zero(t, tokenBalance(state, testHookAddr).Sign())
}

func TestRedeemPartial(t *testing.T) {
	engine, gateway, state := newTestEngine()
	id := fillTestBucket(t, engine, gateway, state, 300, 700, 500)

	// Alice redeems a third of her receipts
	payout, err := engine.Redeem(state, alice, id, big.NewInt(100), alice)
	require.NoError(t, err)
	require.Equal(t, int64(50), payout.Int64())
	require.Equal(t, int64(200), engine.Receipts().BalanceOf(state, alice, id).Int64())

	bucket, err := engine.GetBucket(state, id)
	require.NoError(t, err)
	require.Equal(t, int64(450), bucket.TotalClaimable.Int64())
	require.Equal(t, int64(900), bucket.TotalDeposited.Int64())
}

func TestRedeemToThirdPartyDestination(t *testing.T) {
	engine, gateway, state := newTestEngine()
	id := fillTestBucket(t, engine, gateway, state, 300, 700, 500)

	payout, err := engine.Redeem(state, alice, id, big.NewInt(300), carol)
	require.NoError(t, err)
	require.Equal(t, int64(150), payout.Int64())
	require.Zero(t, tokenBalance(state, alice).Sign())
	require.Equal(t, int64(150), tokenBalance(state, carol).Int64())
}

func TestRedeemFloorsDust(t *testing.T) {
	engine, gateway, state := newTestEngine()
	// 1000 deposited, 999 received: payouts floor and their sum never
	// exceeds what the bucket holds.
	id := fillTestBucket(t, engine, gateway, state, 333, 667, 999)

	total := new(big.Int)
	for _, owner := range []struct {
		addr   common.Address
		amount int64
	}{
		{alice, 333},
		{bob, 667},
	} {
		payout, err := engine.Redeem(state, owner.addr, id, big.NewInt(owner.amount), owner.addr)
		require.NoError(t, err)
		total.Add(total, payout)
	}
	require.LessOrEqual(t, total.Int64(), int64(999))

	bucket, err := engine.GetBucket(state, id)
	require.NoError(t, err)
	require.GreaterOrEqual(t, bucket.TotalClaimable.Int64(), int64(0))
}

func TestRedeemValidation(t *testing.T) {
	engine, gateway, state := newTestEngine()
	key := testPoolKey()
	trackPool(engine, state, key, 50)

	var unknown [32]byte
	unknown[0] = 0xff
	_, err := engine.Redeem(state, alice, unknown, big.NewInt(1), alice)
	require.ErrorIs(t, err, ErrUnknownBucket)

	fundNative(state, alice, 300)
	_, err = engine.Place(state, alice, key, 70, true, big.NewInt(300))
	require.NoError(t, err)
	id := BucketKey{PoolID: key.ID(), TickLower: 60, ZeroForOne: true}.ID()

	// Not filled yet
	_, err = engine.Redeem(state, alice, id, big.NewInt(300), alice)
	require.ErrorIs(t, err, ErrNothingClaimable)

	fundToken(state, testPoolAddr, 1_000)
	gateway.outputs = []*big.Int{big.NewInt(299)}
	require.NoError(t, engine.AfterSwap(state, carol, key, dex.SwapParams{ZeroForOne: false}, dex.ZeroBalanceDelta(), 130))

	_, err = engine.Redeem(state, alice, id, big.NewInt(0), alice)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = engine.Redeem(state, alice, id, big.NewInt(301), alice)
	require.ErrorIs(t, err, ErrInsufficientReceipts)
	_, err = engine.Redeem(state, bob, id, big.NewInt(1), bob)
	require.ErrorIs(t, err, ErrInsufficientReceipts)
}
