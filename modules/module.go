// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules provides registration and lookup of stateful precompile
// modules by address and config key.
package modules

import (
	"bytes"

	"github.com/luxfi/geth/common"

	"github.com/davekaj/uniswap-v4-hook/contract"
)

// Module is a stateful precompile module bound to one address.
type Module struct {
	// ConfigKey is the key this module's config is specified under in the
	// JSON chain config.
	ConfigKey string
	// Address is the address this precompile is registered at.
	Address common.Address
	// Contract is the precompile implementation.
	Contract contract.StatefulPrecompiledContract
	// Configurator configures the precompile from its chain config.
	Configurator contract.Configurator
}

type moduleArray []Module

func (m moduleArray) Len() int {
	return len(m)
}

func (m moduleArray) Swap(i, j int) {
	m[i], m[j] = m[j], m[i]
}

func (m moduleArray) Less(i, j int) bool {
	return bytes.Compare(m[i].Address.Bytes(), m[j].Address.Bytes()) < 0
}
