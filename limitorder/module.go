// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

import (
	"fmt"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
	"github.com/davekaj/uniswap-v4-hook/dex"
	"github.com/davekaj/uniswap-v4-hook/modules"
	"github.com/davekaj/uniswap-v4-hook/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*LimitOrderContract)(nil)
var _ dex.Hook = (*Engine)(nil)
var _ SwapGateway = (*dex.PoolManager)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "limitOrderConfig"

// ContractHookAddress is the hook's address (LP-9021). The leading two
// bytes 0x0082 encode the AfterInitialize and AfterSwap permission flags.
var ContractHookAddress = common.HexToAddress("0x0082000000000000000000000000000000009021")

// LimitOrderPrecompile is the singleton instance, wired to the dex pool
// manager as its swap gateway.
var LimitOrderPrecompile = NewContract(NewEngine(
	ContractHookAddress,
	dex.DEXPrecompile.PoolManager(),
	NewStateReceipts(ContractHookAddress),
	nil,
))

// Module is the precompile module (limit order hook at LP-9021)
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractHookAddress,
	Contract:     LimitOrderPrecompile,
	Configurator: &configurator{},
}

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
	if err := dex.DEXPrecompile.PoolManager().RegisterHook(ContractHookAddress, LimitOrderPrecompile.Engine()); err != nil {
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
	if !state.Exist(ContractHookAddress) {
		state.CreateAccount(ContractHookAddress)
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
