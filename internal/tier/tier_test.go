package tier_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelpull/internal/tier"
)

type failingResolver struct{}

func (failingResolver) ResolveTier(context.Context, string) (tier.Entitlement, error) {
	return "", errors.New("lookup down")
}

func TestResolve(t *testing.T) {
	resolver := tier.NewStaticResolver([]string{"alice", " "})
	tests := []struct {
		caller string
		want   tier.Tier
	}{
		{"alice", tier.High},
		{"bob", tier.Mid},
		{"", tier.Low},
		{"   ", tier.Low},
	}
	for _, tc := range tests {
		got, err := tier.Resolve(context.Background(), resolver, tc.caller)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tc.caller, err)
		}
		if got != tc.want {
			t.Fatalf("Resolve(%q) = %s, want %s", tc.caller, got, tc.want)
		}
	}
}

func TestResolveLookupFailureDegradesToMid(t *testing.T) {
	got, err := tier.Resolve(context.Background(), failingResolver{}, "carol")
	if err == nil {
		t.Fatal("expected lookup error to be reported")
	}
	if got != tier.Mid {
		t.Fatalf("expected mid tier on lookup failure, got %s", got)
	}
}

func TestEstimatedWait(t *testing.T) {
	tests := []struct {
		tier       tier.Tier
		overloaded bool
		want       time.Duration
	}{
		{tier.High, false, 10 * time.Second},
		{tier.Mid, false, 30 * time.Second},
		{tier.Low, false, 60 * time.Second},
		{tier.High, true, 30 * time.Second},
		{tier.Mid, true, 120 * time.Second},
		{tier.Low, true, 300 * time.Second},
	}
	for _, tc := range tests {
		if got := tier.EstimatedWait(tc.tier, tc.overloaded); got != tc.want {
			t.Fatalf("EstimatedWait(%s, %v) = %s, want %s", tc.tier, tc.overloaded, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	if got, err := tier.Parse(" HIGH "); err != nil || got != tier.High {
		t.Fatalf("Parse high: %v %v", got, err)
	}
	if _, err := tier.Parse("platinum"); err == nil {
		t.Fatal("expected error for unknown tier")
	}
	if tier.EntitlementFor(tier.Low) != tier.Anonymous || tier.ForEntitlement(tier.Premium) != tier.High {
		t.Fatal("unexpected entitlement mapping")
	}
}
