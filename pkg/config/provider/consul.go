package provider

import (
	"context"
	"fmt"
	"time"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulProvider reads config from a Consul KV key and polls for
// changes using Consul's blocking-query wait index, the idiomatic way
// to watch a key without a dedicated streaming API.
type ConsulProvider struct {
	client *consulapi.Client
	key    string
}

// NewConsulProvider connects to the first endpoint in endpoints (Consul
// clients are single-address; callers needing failover should front
// this with a load balancer) and targets the KV path key.
func NewConsulProvider(endpoints []string, key string) (*ConsulProvider, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("provider: consul endpoints are required")
	}
	if key == "" {
		return nil, fmt.Errorf("provider: consul key path is required")
	}
	cfg := consulapi.DefaultConfig()
	cfg.Address = endpoints[0]
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: connect to consul: %w", err)
	}
	return &ConsulProvider{client: client, key: key}, nil
}

func (p *ConsulProvider) Type() Type { return TypeConsul }

func (p *ConsulProvider) Load(ctx context.Context) ([]byte, error) {
	pair, _, err := p.client.KV().Get(p.key, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("provider: read consul key %s: %w", p.key, err)
	}
	if pair == nil {
		return nil, fmt.Errorf("provider: consul key %s not found", p.key)
	}
	return pair.Value, nil
}

func (p *ConsulProvider) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		var lastIndex uint64
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			opts := (&consulapi.QueryOptions{WaitIndex: lastIndex, WaitTime: 30 * time.Second}).WithContext(ctx)
			pair, meta, err := p.client.KV().Get(p.key, opts)
			if err != nil {
				time.Sleep(time.Second)
				continue
			}
			if pair != nil && meta.LastIndex != lastIndex {
				lastIndex = meta.LastIndex
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func (p *ConsulProvider) Close() error { return nil }

var _ Provider = (*ConsulProvider)(nil)
