package elasticx

import (
	"context"
	"io"
	"sort"
	"strconv"

	"github.com/clinia/xbulk/bulkx"
	"github.com/clinia/xbulk/clusterx"
	"github.com/elastic/go-elasticsearch/v9/esapi"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
)

// LoadState reads the indices, aliases and blocks of the cluster.
func (c *Client) LoadState(ctx context.Context) (*clusterx.State, error) {
	res, err := esapi.ClusterStateRequest{
		Metric: []string{"metadata", "blocks"},
	}.Do(ctx, c.es)
	if err != nil {
		return nil, bulkx.TransportError("[_cluster]", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, withElasticError(res, "", "")
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, bulkx.TransportError("[_cluster]", err)
	}
	return parseState(body)
}

func parseState(body []byte) (*clusterx.State, error) {
	if !gjson.ValidBytes(body) {
		return nil, bulkx.ParseError("cluster state is not valid JSON")
	}
	root := gjson.ParseBytes(body)

	s := clusterx.NewState()
	s.Version = root.Get("version").Int()

	root.Get("metadata.indices").ForEach(func(name, im gjson.Result) bool {
		shards, _ := strconv.Atoi(im.Get("settings.index.number_of_shards").String())
		if shards <= 0 {
			shards = clusterx.DefaultNumberOfShards
		}
		state := clusterx.IndexStateOpen
		if im.Get("state").String() == string(clusterx.IndexStateClose) {
			state = clusterx.IndexStateClose
		}
		required := im.Get("mappings._routing.required").Bool() ||
			im.Get("mappings." + bulkx.DefaultType + "._routing.required").Bool()

		s.Metadata.Indices[name.String()] = &clusterx.IndexMetadata{
			Name:            name.String(),
			State:           state,
			NumberOfShards:  shards,
			RoutingRequired: required,
		}
		for _, alias := range im.Get("aliases").Array() {
			a, ok := s.Metadata.Aliases[alias.String()]
			if !ok {
				a = &clusterx.AliasMetadata{Name: alias.String()}
				s.Metadata.Aliases[alias.String()] = a
			}
			a.Indices = append(a.Indices, name.String())
		}
		return true
	})
	for _, a := range s.Metadata.Aliases {
		sort.Strings(a.Indices)
	}

	s.Blocks.Global = parseBlocks(root.Get("blocks.global"))
	root.Get("blocks.indices").ForEach(func(name, blocks gjson.Result) bool {
		s.Blocks.Indices[name.String()] = parseBlocks(blocks)
		return true
	})
	return s, nil
}

func parseBlocks(v gjson.Result) []clusterx.Block {
	var blocks []clusterx.Block
	v.ForEach(func(id, b gjson.Result) bool {
		n, _ := strconv.Atoi(id.String())
		blocks = append(blocks, clusterx.Block{
			ID:          n,
			Description: b.Get("description").String(),
			Retryable:   b.Get("retryable").Bool(),
			Levels: lo.Map(b.Get("levels").Array(), func(l gjson.Result, _ int) clusterx.BlockLevel {
				return clusterx.BlockLevel(l.String())
			}),
		})
		return true
	})
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].ID < blocks[j].ID })
	return blocks
}
