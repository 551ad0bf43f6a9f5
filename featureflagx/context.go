package featureflagx

import (
	"context"
)

type featureFlagKeyType uint8

var featureFlagKey = featureFlagKeyType(1)

func NewContext(ctx context.Context, ff *FeatureFlags) context.Context {
	return context.WithValue(ctx, featureFlagKey, ff)
}

func FromContext(ctx context.Context) (*FeatureFlags, bool) {
	ff, ok := ctx.Value(featureFlagKey).(*FeatureFlags)
	if !ok || ff == nil {
		return nil, false
	}
	return ff, true
}

// IsEnabledInContext reports whether the flags stored in ctx enable f.
func IsEnabledInContext(ctx context.Context, f FeatureFlag) bool {
	ff, ok := FromContext(ctx)
	return ok && ff.IsEnabled(f)
}
