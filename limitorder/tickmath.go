// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package limitorder

// AlignTick floors a tick to the nearest bucket boundary at or below it.
// Go's integer division truncates toward zero, so negative ticks with a
// remainder must step down one more spacing: AlignTick(-5, 10) is -10.
func AlignTick(tick, spacing int24) int24 {
	quotient := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		quotient--
	}
	return quotient * spacing
}
