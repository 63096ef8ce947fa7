package probe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoCacheAddress is returned when no cache address is configured.
var ErrNoCacheAddress = errors.New("cache address list is empty")

const (
	redisURLKey      = "redis.url"
	redisPasswordKey = "redis.password"
	nodeScheme       = "redis://"
)

// CacheTopology describes how to reach the cache.
type CacheTopology struct {
	// Cluster is set when more than one address is configured.
	Cluster bool
	// Nodes are the configured addresses with the redis:// scheme.
	Nodes []string
	// Password is empty when no password is configured.
	Password string
}

// CacheTopologyFrom reads the comma-separated "redis.url" list and the
// optional "redis.password" from props.
func CacheTopologyFrom(props PropertySource) (CacheTopology, error) {
	raw := props.Get(redisURLKey)
	if strings.TrimSpace(raw) == "" {
		return CacheTopology{}, ErrNoCacheAddress
	}

	var nodes []string
	for _, addr := range strings.Split(raw, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		nodes = append(nodes, nodeScheme+addr)
	}
	if len(nodes) == 0 {
		return CacheTopology{}, ErrNoCacheAddress
	}

	topology := CacheTopology{
		Cluster: len(nodes) > 1,
		Nodes:   nodes,
	}
	if password := props.Get(redisPasswordKey); strings.TrimSpace(password) != "" {
		topology.Password = password
	}
	return topology, nil
}

// CacheClient is a live cache connection.
type CacheClient interface {
	Ping(ctx context.Context) error
	Close() error
}

// CacheClientFactory builds a client for a topology.
type CacheClientFactory func(topology CacheTopology) (CacheClient, error)

// NewRedisClient builds a go-redis single-server or cluster client.
func NewRedisClient(topology CacheTopology) (CacheClient, error) {
	if len(topology.Nodes) == 0 {
		return nil, ErrNoCacheAddress
	}

	if !topology.Cluster {
		opts, err := redis.ParseURL(topology.Nodes[0])
		if err != nil {
			return nil, fmt.Errorf("parse cache address %q: %w", topology.Nodes[0], err)
		}
		opts.Password = topology.Password
		return &redisClient{client: redis.NewClient(opts)}, nil
	}

	addrs := make([]string, 0, len(topology.Nodes))
	for _, node := range topology.Nodes {
		opts, err := redis.ParseURL(node)
		if err != nil {
			return nil, fmt.Errorf("parse cache address %q: %w", node, err)
		}
		addrs = append(addrs, opts.Addr)
	}
	return &redisClient{client: redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:    addrs,
		Password: topology.Password,
	})}, nil
}

type redisClient struct {
	client redis.UniversalClient
}

func (c *redisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}

// Cache probes the cache.
type Cache struct {
	factory CacheClientFactory
	logger  *zap.Logger
}

// CacheOption configures a Cache probe.
type CacheOption func(*Cache)

// WithClientFactory replaces NewRedisClient.
func WithClientFactory(factory CacheClientFactory) CacheOption {
	return func(c *Cache) {
		c.factory = factory
	}
}

// WithCacheLogger sets the probe logger.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache returns a Cache probe backed by go-redis unless overridden.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		factory: NewRedisClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check builds a client for the topology in props and pings it once. The
// client is always closed. go-redis dials lazily, so the ping is what
// establishes the connection.
func (c *Cache) Check(ctx context.Context, props PropertySource) error {
	topology, err := CacheTopologyFrom(props)
	if err != nil {
		return err
	}

	client, err := c.factory(topology)
	if err != nil {
		return err
	}
	if client == nil {
		return errors.New("cache client factory returned no client")
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			c.logger.Error("closing cache client failed", zap.Error(closeErr))
		}
	}()

	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("ping cache: %w", err)
	}

	c.logger.Info("cache reachable", zap.Bool("cluster", topology.Cluster), zap.Int("nodes", len(topology.Nodes)))
	return nil
}
