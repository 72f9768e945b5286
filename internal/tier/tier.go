// Package tier defines the three priority tiers and how a caller's
// entitlement maps onto them.
package tier

import (
	"fmt"
	"strings"
	"time"
)

// Tier is a priority class with its own queue and worker pool.
type Tier string

const (
	High Tier = "high"
	Mid  Tier = "mid"
	Low  Tier = "low"
)

// All lists the tiers in priority order.
var All = []Tier{High, Mid, Low}

// Parse validates a tier name.
func Parse(value string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(value))); t {
	case High, Mid, Low:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", value)
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	_, err := Parse(string(t))
	return err == nil
}

// Entitlement is the caller account class.
type Entitlement string

const (
	Premium   Entitlement = "premium"
	Free      Entitlement = "free"
	Anonymous Entitlement = "anonymous"
)

// ForEntitlement maps an entitlement to its tier.
func ForEntitlement(e Entitlement) Tier {
	switch e {
	case Premium:
		return High
	case Free:
		return Mid
	default:
		return Low
	}
}

// EntitlementFor is the inverse used for retention decisions: high tier jobs
// belong to premium callers, mid to free, low to anonymous callers.
func EntitlementFor(t Tier) Entitlement {
	switch t {
	case High:
		return Premium
	case Mid:
		return Free
	default:
		return Anonymous
	}
}

// EstimatedWait is the heuristic wait quoted to queued callers.
func EstimatedWait(t Tier, overloaded bool) time.Duration {
	if overloaded {
		switch t {
		case High:
			return 30 * time.Second
		case Mid:
			return 120 * time.Second
		default:
			return 300 * time.Second
		}
	}
	switch t {
	case High:
		return 10 * time.Second
	case Mid:
		return 30 * time.Second
	default:
		return 60 * time.Second
	}
}
