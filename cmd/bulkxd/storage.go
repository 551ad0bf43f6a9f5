package main

import (
	"context"
	"time"

	"github.com/clinia/xbulk/arangox"
	"github.com/clinia/xbulk/bulkx/shard"
	"github.com/clinia/xbulk/clusterx"
	"github.com/clinia/xbulk/configx"
	"github.com/clinia/xbulk/elasticx"
	"github.com/clinia/xbulk/errorx"
	"github.com/clinia/xbulk/loggerx"
	"github.com/elastic/go-elasticsearch/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	engineMemory        = "memory"
	engineElasticsearch = "elasticsearch"
	engineArangoDB      = "arangodb"
)

// storage is the document engine with what it knows of the topology. creator is nil when
// the cluster service owns index creation.
type storage struct {
	engine  shard.Engine
	creator indexCreator
	initial *clusterx.State
}

type indexCreator interface {
	CreateIndex(ctx context.Context, name string, timeout time.Duration) error
}

func openStorage(ctx context.Context, l *loggerx.Logger, conf *configx.Provider) (*storage, error) {
	timeout := conf.Duration("storage.init_timeout")
	kind := conf.StringF("storage.engine", engineMemory)
	l.Info(ctx, "opening storage", attribute.String("engine", kind))

	switch kind {
	case engineMemory:
		return &storage{engine: shard.NewMemoryEngine()}, nil
	case engineElasticsearch:
		c, err := elasticx.NewClient(l, elasticsearch.Config{
			Addresses: conf.Strings("storage.elasticsearch.addresses"),
			Username:  conf.String("storage.elasticsearch.username"),
			Password:  conf.String("storage.elasticsearch.password"),
		})
		if err != nil {
			return nil, err
		}
		if err := c.Init(ctx, timeout); err != nil {
			return nil, err
		}
		state, err := c.LoadState(ctx)
		if err != nil {
			return nil, err
		}
		return &storage{
			engine:  elasticx.NewEngine(c),
			creator: elasticx.NewIndexCreator(c),
			initial: state,
		}, nil
	case engineArangoDB:
		var ac arangox.Config
		if err := conf.Unmarshal("storage.arangodb", &ac); err != nil {
			return nil, err
		}
		db, err := arangox.Connect(ctx, l, ac, timeout)
		if err != nil {
			return nil, err
		}
		if err := arangox.Migrate(ctx, l, db); err != nil {
			return nil, err
		}
		engine, err := arangox.NewEngine(ctx, db)
		if err != nil {
			return nil, err
		}
		return &storage{engine: engine}, nil
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown storage engine [%s]", kind)
	}
}

// registeringCreator creates indices in the backing store, then makes them routable on
// the local cluster service.
type registeringCreator struct {
	store   indexCreator
	cluster *clusterx.Service
}

func (c *registeringCreator) CreateIndex(ctx context.Context, name string, timeout time.Duration) error {
	if err := c.store.CreateIndex(ctx, name, timeout); err != nil && !errorx.IsAlreadyExistsError(err) {
		return err
	}
	if err := c.cluster.CreateIndex(ctx, name, timeout); err != nil && !errorx.IsAlreadyExistsError(err) {
		return err
	}
	return nil
}
