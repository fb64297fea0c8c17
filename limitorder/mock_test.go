// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/tracing"
	ethtypes "github.com/luxfi/geth/core/types"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
)

// MockStateDB implements contract.StateDB for testing, with real
// snapshot/revert semantics via deep copies.
type MockStateDB struct {
	state     map[common.Address]map[common.Hash]common.Hash
	balances  map[common.Address]*uint256.Int
	multicoin map[common.Address]map[common.Hash]*big.Int
	logs      []*ethtypes.Log
	snapshots []mockSnapshot
}

type mockSnapshot struct {
	state     map[common.Address]map[common.Hash]common.Hash
	balances  map[common.Address]*uint256.Int
	multicoin map[common.Address]map[common.Hash]*big.Int
	logCount  int
}

func NewMockStateDB() *MockStateDB {
	return &MockStateDB{
		state:     make(map[common.Address]map[common.Hash]common.Hash),
		balances:  make(map[common.Address]*uint256.Int),
		multicoin: make(map[common.Address]map[common.Hash]*big.Int),
	}
}

func (m *MockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	return m.state[addr][key]
}

func (m *MockStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	slots, ok := m.state[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		m.state[addr] = slots
	}
	prev := slots[key]
	slots[key] = value
	return prev
}

func (m *MockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if balance, ok := m.balances[addr]; ok {
		return new(uint256.Int).Set(balance)
	}
	return new(uint256.Int)
}

func (m *MockStateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := m.GetBalance(addr)
	m.balances[addr] = new(uint256.Int).Add(prev, amount)
	return *prev
}

func (m *MockStateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	prev := m.GetBalance(addr)
	m.balances[addr] = new(uint256.Int).Sub(prev, amount)
	return *prev
}

func (m *MockStateDB) GetBalanceMultiCoin(addr common.Address, coinID common.Hash) *big.Int {
	if coins, ok := m.multicoin[addr]; ok {
		if balance, ok := coins[coinID]; ok {
			return new(big.Int).Set(balance)
		}
	}
	return new(big.Int)
}

func (m *MockStateDB) AddBalanceMultiCoin(addr common.Address, coinID common.Hash, amount *big.Int) {
	coins, ok := m.multicoin[addr]
	if !ok {
		coins = make(map[common.Hash]*big.Int)
		m.multicoin[addr] = coins
	}
	coins[coinID] = new(big.Int).Add(m.GetBalanceMultiCoin(addr, coinID), amount)
}

func (m *MockStateDB) SubBalanceMultiCoin(addr common.Address, coinID common.Hash, amount *big.Int) {
	coins, ok := m.multicoin[addr]
	if !ok {
		coins = make(map[common.Hash]*big.Int)
		m.multicoin[addr] = coins
	}
	coins[coinID] = new(big.Int).Sub(m.GetBalanceMultiCoin(addr, coinID), amount)
}

func (m *MockStateDB) CreateAccount(addr common.Address) {
	if _, ok := m.balances[addr]; !ok {
		m.balances[addr] = new(uint256.Int)
	}
}

func (m *MockStateDB) Exist(addr common.Address) bool {
	_, ok := m.balances[addr]
	return ok
}

func (m *MockStateDB) AddLog(log *ethtypes.Log) {
	m.logs = append(m.logs, log)
}

func (m *MockStateDB) Logs() []*ethtypes.Log {
	return m.logs
}

func (m *MockStateDB) Snapshot() int {
	snap := mockSnapshot{
		state:     make(map[common.Address]map[common.Hash]common.Hash, len(m.state)),
		balances:  make(map[common.Address]*uint256.Int, len(m.balances)),
		multicoin: make(map[common.Address]map[common.Hash]*big.Int, len(m.multicoin)),
		logCount:  len(m.logs),
	}
	for addr, slots := range m.state {
		copied := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			copied[k] = v
		}
		snap.state[addr] = copied
	}
	for addr, balance := range m.balances {
		snap.balances[addr] = new(uint256.Int).Set(balance)
	}
	for addr, coins := range m.multicoin {
		copied := make(map[common.Hash]*big.Int, len(coins))
		for k, v := range coins {
			copied[k] = new(big.Int).Set(v)
		}
		snap.multicoin[addr] = copied
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *MockStateDB) RevertToSnapshot(id int) {
	snap := m.snapshots[id]
	m.state = snap.state
	m.balances = snap.balances
	m.multicoin = snap.multicoin
	m.logs = m.logs[:snap.logCount]
	m.snapshots = m.snapshots[:id]
}

// mockAccessibleState wraps a MockStateDB for precompile Run tests
type mockAccessibleState struct {
	stateDB *MockStateDB
}

func (m *mockAccessibleState) GetStateDB() contract.StateDB {
	return m.stateDB
}

func (m *mockAccessibleState) GetBlockContext() contract.BlockContext {
	return &mockBlockContext{}
}

type mockBlockContext struct{}

func (m *mockBlockContext) Number() *big.Int  { return big.NewInt(1) }
func (m *mockBlockContext) Timestamp() uint64 { return 1_700_000_000 }

// stubGateway is a scripted SwapGateway. Each fill swap consumes the full
// specified input and returns the next scripted output amount; Settle and
// Take move real balances against a pool custody address.
type stubGateway struct {
	poolAddr common.Address
	swaps    []dex.SwapParams
	outputs  []*big.Int
	failAt   int // 1-based index of the swap that fails, 0 = never
}

var errStubSwapRejected = errors.New("pool rejected swap")

func (g *stubGateway) Swap(
	state contract.StateDB,
	sender common.Address,
	key dex.PoolKey,
	params dex.SwapParams,
) (dex.BalanceDelta, error) {
	g.swaps = append(g.swaps, params)
	n := len(g.swaps)
	if g.failAt != 0 && n == g.failAt {
		return dex.ZeroBalanceDelta(), errStubSwapRejected
	}

	out := big.NewInt(0)
	if len(g.outputs) >= n {
		out = g.outputs[n-1]
	}
	if params.ZeroForOne {
		return dex.NewBalanceDelta(params.AmountSpecified, new(big.Int).Neg(out)), nil
	}
	return dex.NewBalanceDelta(new(big.Int).Neg(out), params.AmountSpecified), nil
}

func (g *stubGateway) Settle(state contract.StateDB, from common.Address, currency dex.Currency, amount *big.Int) error {
	return dex.Transfer(state, currency, from, g.poolAddr, amount)
}

func (g *stubGateway) Take(state contract.StateDB, currency dex.Currency, to common.Address, amount *big.Int) error {
	return dex.Transfer(state, currency, g.poolAddr, to, amount)
}

var (
	testHookAddr = common.HexToAddress("0x0082000000000000000000000000000000009021")
	testPoolAddr = common.HexToAddress("0x0000000000000000000000000000000000009010")
	testToken    = common.HexToAddress("0x0000000000000000000000000000000000000aaa")
	alice        = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bob          = common.HexToAddress("0x1000000000000000000000000000000000000002")
	carol        = common.HexToAddress("0x1000000000000000000000000000000000000003")
)

// testPoolKey pairs the native asset against a multicoin token at tick
// spacing 60, hooked to the test engine's address.
func testPoolKey() dex.PoolKey {
	return dex.PoolKey{
		Currency0:   dex.NativeCurrency,
		Currency1:   dex.Currency{Address: testToken},
		Fee:         0,
		TickSpacing: 60,
		Hooks:       testHookAddr,
	}
}

func newTestEngine() (*Engine, *stubGateway, *MockStateDB) {
	gateway := &stubGateway{poolAddr: testPoolAddr}
	engine := NewEngine(testHookAddr, gateway, NewStateReceipts(testHookAddr), nil)
	return engine, gateway, NewMockStateDB()
}

// trackPool seeds the cursor as pool initialization would
func trackPool(engine *Engine, state contract.StateDB, key dex.PoolKey, tick int24) {
	_ = engine.AfterInitialize(state, alice, key, dex.TickToSqrtPriceX96(tick), tick)
}

func fundNative(state *MockStateDB, addr common.Address, amount uint64) {
	state.AddBalance(addr, uint256.NewInt(amount), tracing.BalanceChangeUnspecified)
}

func fundToken(state *MockStateDB, addr common.Address, amount int64) {
	state.AddBalanceMultiCoin(addr, dex.CoinID(dex.Currency{Address: testToken}), big.NewInt(amount))
}

func tokenBalance(state *MockStateDB, addr common.Address) *big.Int {
	return state.GetBalanceMultiCoin(addr, dex.CoinID(dex.Currency{Address: testToken}))
}
