// Package kgox keeps a clusterx.Service in sync with the topology events published on a
// Kafka topic.
package kgox

import "github.com/clinia/xbulk/mathx"

type Config struct {
	Brokers       []string `json:"brokers"`
	Topic         string   `json:"topology_topic"`
	ConsumerGroup string   `json:"consumer_group"`
	// Partitions and ReplicationFactor are used when the topic has to be created.
	Partitions        int32 `json:"partitions"`
	ReplicationFactor int16 `json:"replication_factor"`
	MaxPollRecords    int   `json:"max_poll_records"`
}

func (c Config) withDefaults() Config {
	if c.Topic == "" {
		c.Topic = "bulkx.topology"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "bulkx"
	}
	if c.Partitions <= 0 {
		c.Partitions = 1
	}
	if c.ReplicationFactor == 0 {
		c.ReplicationFactor = -1
	}
	if c.MaxPollRecords <= 0 {
		c.MaxPollRecords = 100
	}
	c.MaxPollRecords = mathx.Clamp(c.MaxPollRecords, 1, 10000)
	return c
}
