// Copyright (C) 2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig defines the interfaces precompile configs must
// implement to participate in chain-config driven activation.
package precompileconfig

import "math/big"

// Config is implemented by all precompile configs. Configs are embedded in
// the chain config JSON under their Key and activated at Timestamp.
type Config interface {
	// Key returns the unique key for this precompile config in the JSON
	// chain configuration.
	Key() string
	// Timestamp returns the timestamp at which this precompile activates.
	// nil means never.
	Timestamp() *uint64
	// IsDisabled returns true if this config disables a previously
	// activated precompile.
	IsDisabled() bool
	// Equal reports deep equality against another config of the same type.
	Equal(Config) bool
	// Verify checks the config is internally consistent.
	Verify(ChainConfig) error
}

// ChainConfig exposes the chain parameters precompile configs may verify
// themselves against.
type ChainConfig interface {
	ChainID() *big.Int
}

// Upgrade is embedded in precompile configs to provide activation and
// deactivation timestamps.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp,omitempty"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the timestamp this upgrade activates at.
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal reports whether two upgrades are identical.
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	switch {
	case u.BlockTimestamp == nil && other.BlockTimestamp == nil:
		return true
	case u.BlockTimestamp == nil || other.BlockTimestamp == nil:
		return false
	default:
		return *u.BlockTimestamp == *other.BlockTimestamp
	}
}
