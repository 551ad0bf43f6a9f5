package main

import (
	"context"
	_ "embed"

	"github.com/clinia/xbulk/configx"
	"github.com/spf13/pflag"
)

//go:embed config.schema.json
var configSchema []byte

// Keys that cannot change without a restart.
var immutableKeys = []string{
	"http.address",
	"storage.engine",
	"storage.elasticsearch.addresses",
	"storage.arangodb.endpoints",
	"cluster.kafka.brokers",
}

func loadConfig(ctx context.Context, files []string, flags *pflag.FlagSet, opts ...configx.OptionModifier) (*configx.Provider, error) {
	opts = append([]configx.OptionModifier{
		configx.WithConfigFiles(files...),
		configx.WithFlags(flags),
		configx.WithImmutables(immutableKeys...),
	}, opts...)
	return configx.New(ctx, configSchema, opts...)
}
