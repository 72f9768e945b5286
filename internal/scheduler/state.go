package scheduler

import (
	"sync/atomic"

	"reelpull/internal/tier"
)

// Availability is the broker connection state.
type Availability string

const (
	Unavailable Availability = "unavailable"
	Connecting  Availability = "connecting"
	Available   Availability = "available"
)

// TierState is a point-in-time copy of one tier.
type TierState struct {
	Tier        tier.Tier `json:"tier"`
	Concurrency int       `json:"concurrency"`
	Paused      bool      `json:"paused"`
	Active      int64     `json:"active"`
}

type tierState struct {
	tier        tier.Tier
	concurrency int
	paused      atomic.Bool
	active      atomic.Int64
}

func (s *tierState) snapshot() TierState {
	return TierState{
		Tier:        s.tier,
		Concurrency: s.concurrency,
		Paused:      s.paused.Load(),
		Active:      s.active.Load(),
	}
}
