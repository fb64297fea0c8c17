// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dex

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/modules"
	"github.com/davekaj/uniswap-v4-hook/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*DEXContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "dexConfig"

// ContractPoolManagerAddress is the LXPool singleton address (LP-9010)
var ContractPoolManagerAddress = common.HexToAddress(LXPoolAddress)

// DEXPrecompile is the singleton instance
var DEXPrecompile = &DEXContract{
	poolManager: NewPoolManager(),
}

// Module is the precompile module (LXPool at LP-9010)
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractPoolManagerAddress,
	Contract:     DEXPrecompile,
	Configurator: &configurator{},
}

// Method selectors for PoolManager
const (
	SelectorInitialize      uint32 = 0x01000000 // initialize(PoolKey,uint160)
	SelectorSwap            uint32 = 0x02000000 // swap(PoolKey,SwapParams)
	SelectorModifyLiquidity uint32 = 0x03000000 // modifyLiquidity(PoolKey,ModifyLiqParams)
	SelectorGetPool         uint32 = 0x08000000 // getPool(PoolKey)
)

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	if _, ok := cfg.(*Config); !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if !state.Exist(ContractPoolManagerAddress) {
		state.CreateAccount(ContractPoolManagerAddress)
	}
	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade precompileconfig.Upgrade `json:"upgrade,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade)
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	return nil
}

// DEXContract implements the pool manager precompile
type DEXContract struct {
	poolManager *PoolManager
}

// PoolManager returns the underlying pool manager, used by hook modules to
// register themselves at init time.
func (c *DEXContract) PoolManager() *PoolManager {
	return c.poolManager
}

// Run executes the precompile
func (c *DEXContract) Run(
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
	case SelectorInitialize:
		return c.runInitialize(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorSwap:
		return c.runSwap(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorModifyLiquidity:
		return c.runModifyLiquidity(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorGetPool:
		return c.runGetPool(accessibleState, data, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *DEXContract) runInitialize(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasPoolCreate {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasPoolCreate

	if len(input) < 192 {
		return nil, remaining, fmt.Errorf("input too short")
	}
	key, err := DecodePoolKey(input[:160])
	if err != nil {
		return nil, remaining, err
	}
	sqrtPriceX96 := new(big.Int).SetBytes(input[160:192])

	tick, err := c.poolManager.Initialize(state.GetStateDB(), caller, key, sqrtPriceX96)
	if err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 32)
	putSignedWord(result, big.NewInt(int64(tick)))
	return result, remaining, nil
}

func (c *DEXContract) runSwap(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasSwap {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasSwap

	key, params, err := DecodeSwapInput(input)
	if err != nil {
		return nil, remaining, err
	}

	stateDB := state.GetStateDB()
	delta, err := c.poolManager.Swap(stateDB, caller, key, params)
	if err != nil {
		return nil, remaining, err
	}

	// No flash accounting: deltas settle synchronously against the caller.
	if err := c.settleDelta(stateDB, caller, key, delta); err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 64)
	putSignedWord(result[0:32], delta.Amount0)
	putSignedWord(result[32:64], delta.Amount1)
	return result, remaining, nil
}

func (c *DEXContract) runModifyLiquidity(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasAddLiquidity {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasAddLiquidity

	key, params, err := DecodeModifyLiquidityInput(input)
	if err != nil {
		return nil, remaining, err
	}

	stateDB := state.GetStateDB()
	delta, err := c.poolManager.ModifyLiquidity(stateDB, caller, key, params)
	if err != nil {
		return nil, remaining, err
	}

	if err := c.settleDelta(stateDB, caller, key, delta); err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 64)
	putSignedWord(result[0:32], delta.Amount0)
	putSignedWord(result[32:64], delta.Amount1)
	return result, remaining, nil
}

func (c *DEXContract) runGetPool(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasPoolLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	remaining := suppliedGas - GasPoolLookup

	key, err := DecodePoolKey(input)
	if err != nil {
		return nil, remaining, err
	}

	pool, err := c.poolManager.GetPool(state.GetStateDB(), key)
	if err != nil {
		return nil, remaining, err
	}

	result := make([]byte, 96)
	pool.SqrtPriceX96.FillBytes(result[0:32])
	putSignedWord(result[32:64], big.NewInt(int64(pool.Tick)))
	pool.Liquidity.FillBytes(result[64:96])
	return result, remaining, nil
}

// settleDelta moves tokens for a signed delta: the caller pays positive
// amounts into pool custody and receives negative amounts out of it.
func (c *DEXContract) settleDelta(state contract.StateDB, caller common.Address, key PoolKey, delta BalanceDelta) error {
	currencies := [2]Currency{key.Currency0, key.Currency1}
	amounts := [2]*big.Int{delta.Amount0, delta.Amount1}
	for i := range currencies {
		switch amounts[i].Sign() {
		case 1:
			if err := c.poolManager.Settle(state, caller, currencies[i], amounts[i]); err != nil {
				return err
			}
		case -1:
			if err := c.poolManager.Take(state, currencies[i], caller, new(big.Int).Abs(amounts[i])); err != nil {
				return err
			}
		}
	}
	return nil
}

// RequiredGas returns the gas required for the precompile input
func (c *DEXContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasSwap
	}

	switch binary.BigEndian.Uint32(input[:4]) {
	case SelectorInitialize:
		return GasPoolCreate
	case SelectorSwap:
		return GasSwap
	case SelectorModifyLiquidity:
		return GasAddLiquidity
	case SelectorGetPool:
		return GasPoolLookup
	default:
		return GasSwap
	}
}

// =========================================================================
// Encoding helpers
// =========================================================================

var wordModulus = new(big.Int).Lsh(big.NewInt(1), 256)

// ParseSignedWord interprets a 32-byte word as a two's-complement int256
func ParseSignedWord(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if len(b) == 32 && b[0]&0x80 != 0 {
		v.Sub(v, wordModulus)
	}
	return v
}

// putSignedWord writes v into a 32-byte word as two's-complement int256
func putSignedWord(b []byte, v *big.Int) {
	if v.Sign() < 0 {
		new(big.Int).Add(wordModulus, v).FillBytes(b)
		return
	}
	v.FillBytes(b)
}

// DecodePoolKey decodes a PoolKey from five 32-byte words
func DecodePoolKey(input []byte) (PoolKey, error) {
	if len(input) < 160 {
		return PoolKey{}, fmt.Errorf("input too short for PoolKey")
	}

	key := PoolKey{}
	key.Currency0 = Currency{Address: common.BytesToAddress(input[12:32])}
	key.Currency1 = Currency{Address: common.BytesToAddress(input[44:64])}
	key.Fee = uint24(binary.BigEndian.Uint32(input[92:96]))
	key.TickSpacing = int24(binary.BigEndian.Uint32(input[124:128]))
	key.Hooks = common.BytesToAddress(input[140:160])

	return key, nil
}

// EncodePoolKey encodes a PoolKey as five 32-byte words
func EncodePoolKey(key PoolKey) []byte {
	out := make([]byte, 160)
	copy(out[12:32], key.Currency0.Address.Bytes())
	copy(out[44:64], key.Currency1.Address.Bytes())
	binary.BigEndian.PutUint32(out[92:96], uint32(key.Fee))
	binary.BigEndian.PutUint32(out[124:128], uint32(key.TickSpacing))
	copy(out[140:160], key.Hooks.Bytes())
	return out
}

// DecodeSwapInput decodes swap input: PoolKey, zeroForOne flag word,
// signed amountSpecified word, sqrtPriceLimit word
func DecodeSwapInput(input []byte) (PoolKey, SwapParams, error) {
	if len(input) < 256 {
		return PoolKey{}, SwapParams{}, fmt.Errorf("input too short for swap")
	}

	key, err := DecodePoolKey(input[:160])
	if err != nil {
		return PoolKey{}, SwapParams{}, err
	}

	params := SwapParams{
		ZeroForOne:        input[191] == 1,
		AmountSpecified:   ParseSignedWord(input[192:224]),
		SqrtPriceLimitX96: new(big.Int).SetBytes(input[224:256]),
	}
	return key, params, nil
}

// DecodeModifyLiquidityInput decodes modifyLiquidity input: PoolKey, signed
// tickLower and tickUpper words, signed liquidityDelta word, salt word
func DecodeModifyLiquidityInput(input []byte) (PoolKey, ModifyLiquidityParams, error) {
	if len(input) < 288 {
		return PoolKey{}, ModifyLiquidityParams{}, fmt.Errorf("input too short for modifyLiquidity")
	}

	key, err := DecodePoolKey(input[:160])
	if err != nil {
		return PoolKey{}, ModifyLiquidityParams{}, err
	}

	params := ModifyLiquidityParams{
		TickLower:      int24(binary.BigEndian.Uint32(input[188:192])),
		TickUpper:      int24(binary.BigEndian.Uint32(input[220:224])),
		LiquidityDelta: ParseSignedWord(input[224:256]),
	}
	copy(params.Salt[:], input[256:288])
	return key, params, nil
}
