// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"encoding/binary"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
)

// Storage key prefixes for hook state. Everything lives in EVM storage
// slots under the hook's address so journal snapshot/revert covers it.
var (
	cursorPrefix          = []byte("curs") // per-pool last-observed aligned tick
	bucketExistsPrefix    = []byte("bext")
	bucketPendingPrefix   = []byte("bpnd") // signed
	bucketDepositedPrefix = []byte("bdep")
	bucketClaimablePrefix = []byte("bclm")
	bucketMetaPrefix      = []byte("bmet") // tickLower + direction
	bucketPoolKeyPrefix0  = []byte("bpk0") // pool key spans three slots
	bucketPoolKeyPrefix1  = []byte("bpk1")
	bucketPoolKeyPrefix2  = []byte("bpk2")
	receiptBalancePrefix  = []byte("rcpt")
	receiptSupplyPrefix   = []byte("rsup")
)

var slotModulus = new(big.Int).Lsh(big.NewInt(1), 256)

// makeStorageKey creates a storage key from prefix and identifier
func makeStorageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// readAmount reads an unsigned amount from a storage slot
func readAmount(state contract.StateDB, addr common.Address, key common.Hash) *big.Int {
	value := state.GetState(addr, key)
	return new(big.Int).SetBytes(value[:])
}

// writeAmount writes an unsigned amount to a storage slot
func writeAmount(state contract.StateDB, addr common.Address, key common.Hash, amount *big.Int) {
	var value common.Hash
	amount.FillBytes(value[:])
	state.SetState(addr, key, value)
}

// readSignedAmount reads a two's-complement int256 from a storage slot
func readSignedAmount(state contract.StateDB, addr common.Address, key common.Hash) *big.Int {
	value := state.GetState(addr, key)
	v := new(big.Int).SetBytes(value[:])
	if value[0]&0x80 != 0 {
		v.Sub(v, slotModulus)
	}
	return v
}

// writeSignedAmount writes a two's-complement int256 to a storage slot
func writeSignedAmount(state contract.StateDB, addr common.Address, key common.Hash, amount *big.Int) {
	var value common.Hash
	if amount.Sign() < 0 {
		new(big.Int).Add(slotModulus, amount).FillBytes(value[:])
	} else {
		amount.FillBytes(value[:])
	}
	state.SetState(addr, key, value)
}

// =========================================================================
// Pool tick cursor
// =========================================================================

// getCursor reads a pool's last-observed aligned tick. The marker byte
// distinguishes an unset cursor from a cursor legitimately at tick zero.
func getCursor(state contract.StateDB, addr common.Address, poolID [32]byte) (int24, bool) {
	value := state.GetState(addr, makeStorageKey(cursorPrefix, poolID[:]))
	if value[0] != 1 {
		return 0, false
	}
	return int24(binary.BigEndian.Uint32(value[28:32])), true
}

// setCursor writes a pool's last-observed aligned tick
func setCursor(state contract.StateDB, addr common.Address, poolID [32]byte, tickLower int24) {
	var value common.Hash
	value[0] = 1
	binary.BigEndian.PutUint32(value[28:32], uint32(tickLower))
	state.SetState(addr, makeStorageKey(cursorPrefix, poolID[:]), value)
}

// =========================================================================
// Buckets
// =========================================================================

func bucketExists(state contract.StateDB, addr common.Address, id [32]byte) bool {
	value := state.GetState(addr, makeStorageKey(bucketExistsPrefix, id[:]))
	return value[31] == 1
}

// registerBucket marks a bucket as existing and persists its metadata so
// redemption can recover the pool currencies from the bucket id alone.
func registerBucket(state contract.StateDB, addr common.Address, id [32]byte, key dex.PoolKey, tickLower int24, zeroForOne bool) {
	var flag common.Hash
	flag[31] = 1
	state.SetState(addr, makeStorageKey(bucketExistsPrefix, id[:]), flag)

	var meta common.Hash
	if zeroForOne {
		meta[27] = 1
	}
	binary.BigEndian.PutUint32(meta[28:32], uint32(tickLower))
	state.SetState(addr, makeStorageKey(bucketMetaPrefix, id[:]), meta)

	// Pool key is 66 bytes, split across three slots
	encoded := key.ToBytes()
	var slot0, slot1, slot2 common.Hash
	copy(slot0[:], encoded[0:32])
	copy(slot1[:], encoded[32:64])
	copy(slot2[:2], encoded[64:66])
	state.SetState(addr, makeStorageKey(bucketPoolKeyPrefix0, id[:]), slot0)
	state.SetState(addr, makeStorageKey(bucketPoolKeyPrefix1, id[:]), slot1)
	state.SetState(addr, makeStorageKey(bucketPoolKeyPrefix2, id[:]), slot2)
}

// loadBucket reads full bucket state for an id
func loadBucket(state contract.StateDB, addr common.Address, id [32]byte) (*Bucket, error) {
	if !bucketExists(state, addr, id) {
		return nil, ErrUnknownBucket
	}

	meta := state.GetState(addr, makeStorageKey(bucketMetaPrefix, id[:]))

	slot0 := state.GetState(addr, makeStorageKey(bucketPoolKeyPrefix0, id[:]))
	slot1 := state.GetState(addr, makeStorageKey(bucketPoolKeyPrefix1, id[:]))
	slot2 := state.GetState(addr, makeStorageKey(bucketPoolKeyPrefix2, id[:]))
	encoded := make([]byte, 66)
	copy(encoded[0:32], slot0[:])
	copy(encoded[32:64], slot1[:])
	copy(encoded[64:66], slot2[:2])
	poolKey, err := dex.PoolKeyFromBytes(encoded)
	if err != nil {
		return nil, err
	}

	return &Bucket{
		Exists:         true,
		Pending:        readSignedAmount(state, addr, makeStorageKey(bucketPendingPrefix, id[:])),
		TotalDeposited: readAmount(state, addr, makeStorageKey(bucketDepositedPrefix, id[:])),
		TotalClaimable: readAmount(state, addr, makeStorageKey(bucketClaimablePrefix, id[:])),
		PoolKey:        poolKey,
		TickLower:      int24(binary.BigEndian.Uint32(meta[28:32])),
		ZeroForOne:     meta[27] == 1,
	}, nil
}

func getPending(state contract.StateDB, addr common.Address, id [32]byte) *big.Int {
	return readSignedAmount(state, addr, makeStorageKey(bucketPendingPrefix, id[:]))
}

func setPending(state contract.StateDB, addr common.Address, id [32]byte, amount *big.Int) {
	writeSignedAmount(state, addr, makeStorageKey(bucketPendingPrefix, id[:]), amount)
}

func getDeposited(state contract.StateDB, addr common.Address, id [32]byte) *big.Int {
	return readAmount(state, addr, makeStorageKey(bucketDepositedPrefix, id[:]))
}

func setDeposited(state contract.StateDB, addr common.Address, id [32]byte, amount *big.Int) {
	writeAmount(state, addr, makeStorageKey(bucketDepositedPrefix, id[:]), amount)
}

func getClaimable(state contract.StateDB, addr common.Address, id [32]byte) *big.Int {
	return readAmount(state, addr, makeStorageKey(bucketClaimablePrefix, id[:]))
}

func setClaimable(state contract.StateDB, addr common.Address, id [32]byte, amount *big.Int) {
	writeAmount(state, addr, makeStorageKey(bucketClaimablePrefix, id[:]), amount)
}
