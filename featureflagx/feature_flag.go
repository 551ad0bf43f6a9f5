package featureflagx

type FeatureFlag string

const (
	// WaitForActiveShards allows callers to set the replica acknowledgment requirement of a bulk request.
	WaitForActiveShards FeatureFlag = "wait_for_active_shards"
)

// KnownFlags lists every flag the service understands.
var KnownFlags = []FeatureFlag{
	WaitForActiveShards,
}

func (f FeatureFlag) String() string {
	return string(f)
}
