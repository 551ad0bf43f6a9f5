package featureflagx

import (
	"encoding/json"
	"slices"

	"github.com/clinia/xbulk/errorx"
)

type FeatureFlags struct {
	fa map[FeatureFlag]FeatureFlagValue
}

// New builds the flags from fs. Every flag of ffss defaults to disabled; keys of fs that are
// not part of ffss are reported as an INVALID_ARGUMENT error.
func New(fs map[string]bool, ffss []FeatureFlag) (*FeatureFlags, error) {
	ffs := FeatureFlags{
		fa: map[FeatureFlag]FeatureFlagValue{},
	}
	for _, f := range ffss {
		ffs.fa[f] = boolFeatureFlagValue(false)
	}
	for f, v := range fs {
		ffs.fa[FeatureFlag(f)] = boolFeatureFlagValue(v)
	}
	return &ffs, ffs.Validate(ffss)
}

func (ffs *FeatureFlags) IsEnabled(ff FeatureFlag) bool {
	if ffs == nil {
		return false
	}
	a, ok := ffs.fa[ff]
	if !ok {
		return false
	}
	return a.IsEnabled()
}

func (ffs *FeatureFlags) GetFlags() map[FeatureFlag]FeatureFlagValue {
	return ffs.fa
}

func (ffs *FeatureFlags) Validate(ffss []FeatureFlag) error {
	missingFlags := make([]FeatureFlag, 0)
	for _, f := range ffss {
		if _, ok := ffs.fa[f]; !ok {
			missingFlags = append(missingFlags, f)
		}
	}
	additionalFlags := make([]FeatureFlag, 0)
	for f := range ffs.fa {
		if !slices.Contains(ffss, f) {
			additionalFlags = append(additionalFlags, f)
		}
	}
	if len(missingFlags)+len(additionalFlags) > 0 {
		slices.Sort(additionalFlags)
		return errorx.InvalidArgumentErrorf("flags are missing or additional flags were provided, missing: %v, additional: %v", missingFlags, additionalFlags)
	}
	return nil
}

func (ffs *FeatureFlags) MarshalJSON() ([]byte, error) {
	if len(ffs.fa) == 0 {
		return []byte("{}"), nil
	}

	marshaledData := make(map[string]bool, len(ffs.fa))
	for k, v := range ffs.fa {
		marshaledData[k.String()] = v.IsEnabled()
	}
	return json.Marshal(marshaledData)
}

func (ffs *FeatureFlags) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	if ffs.fa == nil {
		ffs.fa = make(map[FeatureFlag]FeatureFlagValue, len(flags))
	}
	for k, v := range flags {
		ffs.fa[FeatureFlag(k)] = boolFeatureFlagValue(v)
	}
	return nil
}
