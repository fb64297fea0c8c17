// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/davekaj/uniswap-v4-hook/dex"
)

func placeInput(key dex.PoolKey, tick int24, zeroForOne bool, amount *big.Int) []byte {
	input := make([]byte, 4+256)
	binary.BigEndian.PutUint32(input[0:4], SelectorPlace)
	copy(input[4:164], dex.EncodePoolKey(key))
	putSignedWord(input[164:196], big.NewInt(int64(tick)))
	if zeroForOne {
		input[227] = 1
	}
	amount.FillBytes(input[228:260])
	return input
}

func cancelInput(key dex.PoolKey, tick int24, zeroForOne bool) []byte {
	input := make([]byte, 4+224)
	binary.BigEndian.PutUint32(input[0:4], SelectorCancel)
	copy(input[4:164], dex.EncodePoolKey(key))
	putSignedWord(input[164:196], big.NewInt(int64(tick)))
	if zeroForOne {
		input[227] = 1
	}
	return input
}

func redeemInput(id [32]byte, amount *big.Int, destination common.Address) []byte {
	input := make([]byte, 4+96)
	binary.BigEndian.PutUint32(input[0:4], SelectorRedeem)
	copy(input[4:36], id[:])
	amount.FillBytes(input[36:68])
	copy(input[80:100], destination.Bytes())
	return input
}

func newTestContract() (*LimitOrderContract, *stubGateway, *mockAccessibleState) {
	gateway := &stubGateway{poolAddr: testPoolAddr}
	engine := NewEngine(testHookAddr, gateway, NewStateReceipts(testHookAddr), nil)
	return NewContract(engine), gateway, &mockAccessibleState{stateDB: NewMockStateDB()}
}

func TestContractPlaceCancel(t *testing.T) {
	c, _, accessible := newTestContract()
	state := accessible.stateDB
	key := testPoolKey()
	trackPool(c.Engine(), state, key, 50)
	fundNative(state, alice, 1_000)

	ret, remaining, err := c.Run(accessible, alice, testHookAddr, placeInput(key, 123, true, big.NewInt(1_000)), GasPlace+1_000, false)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), remaining)
	require.Equal(t, int64(120), dex.ParseSignedWord(ret).Int64())

	ret, _, err = c.Run(accessible, alice, testHookAddr, cancelInput(key, 123, true), GasCancel, false)
	require.NoError(t, err)
	require.Equal(t, int64(1_000), new(big.Int).SetBytes(ret).Int64())
	require.Equal(t, uint64(1_000), state.GetBalance(alice).Uint64())
}

func TestContractRedeemAndViews(t *testing.T) {
	c, gateway, accessible := newTestContract()
	state := accessible.stateDB
	key := testPoolKey()
	id := fillTestBucket(t, c.Engine(), gateway, state, 300, 700, 500)

	// getBucket view
	input := make([]byte, 36)
	binary.BigEndian.PutUint32(input[0:4], SelectorGetBucket)
	copy(input[4:36], id[:])
	ret, _, err := c.Run(accessible, alice, testHookAddr, input, GasBucketLookup, true)
	require.NoError(t, err)
	require.Len(t, ret, 160)
	require.Zero(t, dex.ParseSignedWord(ret[0:32]).Sign())
	require.Equal(t, int64(1_000), new(big.Int).SetBytes(ret[32:64]).Int64())
	require.Equal(t, int64(500), new(big.Int).SetBytes(ret[64:96]).Int64())
	require.Equal(t, int64(60), dex.ParseSignedWord(ret[96:128]).Int64())
	require.Equal(t, byte(1), ret[159])

	// balanceOf view
	input = make([]byte, 4+64)
	binary.BigEndian.PutUint32(input[0:4], SelectorBalanceOf)
	copy(input[4:36], id[:])
	copy(input[48:68], alice.Bytes())
	ret, _, err = c.Run(accessible, alice, testHookAddr, input, GasBucketLookup, true)
	require.NoError(t, err)
	require.Equal(t, int64(300), new(big.Int).SetBytes(ret).Int64())

	// cursor view
	poolID := key.ID()
	input = make([]byte, 36)
	binary.BigEndian.PutUint32(input[0:4], SelectorCursor)
	copy(input[4:36], poolID[:])
	ret, _, err = c.Run(accessible, alice, testHookAddr, input, GasBucketLookup, true)
	require.NoError(t, err)
	require.Equal(t, int64(120), dex.ParseSignedWord(ret).Int64())

	// redeem
	ret, _, err = c.Run(accessible, alice, testHookAddr, redeemInput(id, big.NewInt(300), alice), GasRedeem, false)
	require.NoError(t, err)
	require.Equal(t, int64(150), new(big.Int).SetBytes(ret).Int64())
	require.Equal(t, int64(150), tokenBalance(state, alice).Int64())
}

func TestContractReadOnlyRejectsWrites(t *testing.T) {
	c, _, accessible := newTestContract()
	key := testPoolKey()
	trackPool(c.Engine(), accessible.stateDB, key, 50)
	fundNative(accessible.stateDB, alice, 100)

	_, _, err := c.Run(accessible, alice, testHookAddr, placeInput(key, 60, true, big.NewInt(100)), GasPlace, true)
	require.ErrorContains(t, err, "read-only")
	_, _, err = c.Run(accessible, alice, testHookAddr, cancelInput(key, 60, true), GasCancel, true)
	require.ErrorContains(t, err, "read-only")

	var id [32]byte
	_, _, err = c.Run(accessible, alice, testHookAddr, redeemInput(id, big.NewInt(1), alice), GasRedeem, true)
	require.ErrorContains(t, err, "read-only")
}

func TestContractGasAndDispatch(t *testing.T) {
	c, _, accessible := newTestContract()
	key := testPoolKey()

	_, _, err := c.Run(accessible, alice, testHookAddr, placeInput(key, 60, true, big.NewInt(1)), GasPlace-1, false)
	require.ErrorContains(t, err, "out of gas")

	_, _, err = c.Run(accessible, alice, testHookAddr, []byte{0x01}, GasPlace, false)
	require.ErrorContains(t, err, "input too short")

	bad := make([]byte, 4)
	binary.BigEndian.PutUint32(bad, 0x7f000000)
	_, _, err = c.Run(accessible, alice, testHookAddr, bad, GasPlace, false)
	require.ErrorContains(t, err, "unknown method selector")

	require.Equal(t, GasPlace, c.RequiredGas(placeInput(key, 60, true, big.NewInt(1))))
	require.Equal(t, GasCancel, c.RequiredGas(cancelInput(key, 60, true)))

	view := make([]byte, 4)
	binary.BigEndian.PutUint32(view, SelectorCursor)
	require.Equal(t, GasBucketLookup, c.RequiredGas(view))
}

func TestContractCursorUntracked(t *testing.T) {
	c, _, accessible := newTestContract()
	key := testPoolKey()

	poolID := key.ID()
	input := make([]byte, 36)
	binary.BigEndian.PutUint32(input[0:4], SelectorCursor)
	copy(input[4:36], poolID[:])
	_, _, err := c.Run(accessible, alice, testHookAddr, input, GasBucketLookup, true)
	require.ErrorIs(t, err, ErrPoolNotTracked)
}
