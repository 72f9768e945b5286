package tier

import (
	"context"
	"strings"
)

// Resolver looks up the entitlement of a caller.
type Resolver interface {
	ResolveTier(ctx context.Context, callerID string) (Entitlement, error)
}

// StaticResolver treats a fixed set of callers as premium and every other
// identified caller as free.
type StaticResolver struct {
	premium map[string]struct{}
}

// NewStaticResolver builds a resolver from the configured premium callers.
func NewStaticResolver(premiumCallers []string) *StaticResolver {
	premium := make(map[string]struct{}, len(premiumCallers))
	for _, caller := range premiumCallers {
		if caller = strings.TrimSpace(caller); caller != "" {
			premium[caller] = struct{}{}
		}
	}
	return &StaticResolver{premium: premium}
}

// ResolveTier implements Resolver.
func (r *StaticResolver) ResolveTier(_ context.Context, callerID string) (Entitlement, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return Anonymous, nil
	}
	if _, ok := r.premium[callerID]; ok {
		return Premium, nil
	}
	return Free, nil
}

// Resolve returns the tier for callerID. An empty caller is low tier without
// consulting the resolver; a lookup failure degrades to mid tier and is
// returned alongside so callers can log it.
func Resolve(ctx context.Context, resolver Resolver, callerID string) (Tier, error) {
	if strings.TrimSpace(callerID) == "" {
		return Low, nil
	}
	if resolver == nil {
		return Mid, nil
	}
	entitlement, err := resolver.ResolveTier(ctx, callerID)
	if err != nil {
		return Mid, err
	}
	if entitlement == Anonymous {
		return Low, nil
	}
	return ForEntitlement(entitlement), nil
}
