package scheduler

import (
	"reelpull/internal/loadmon"
	"reelpull/internal/tier"
)

// DefaultSevereThreshold is the utilisation above which mid tier is paused as
// well as low.
const DefaultSevereThreshold = 90.0

// Plan returns the paused flag for every tier given snapshot. High is never
// paused; an overloaded host pauses low, and a severely overloaded host
// pauses mid too.
func Plan(snapshot loadmon.Snapshot, severe float64) map[tier.Tier]bool {
	paused := map[tier.Tier]bool{tier.High: false, tier.Mid: false, tier.Low: false}
	if !snapshot.Overloaded {
		return paused
	}
	paused[tier.Low] = true
	if snapshot.CPUPercent > severe || snapshot.MemoryPercent > severe {
		paused[tier.Mid] = true
	}
	return paused
}
