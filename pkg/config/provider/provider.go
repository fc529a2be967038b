// Package provider defines conduit's config-source abstraction.
// Grounded on the teacher's pkg/config/provider package: a small
// interface (Type/Load/Watch/Close) letting the same Loader read from a
// local file or a remote KV store interchangeably.
package provider

import (
	"context"
	"fmt"
)

// Type identifies a config source kind.
type Type string

const (
	TypeFile      Type = "file"
	TypeConsul    Type = "consul"
	TypeEtcd      Type = "etcd"
	TypeZookeeper Type = "zookeeper"
)

// ParseType converts a string flag/env value to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "file", "":
		return TypeFile, nil
	case "consul":
		return TypeConsul, nil
	case "etcd":
		return TypeEtcd, nil
	case "zookeeper", "zk":
		return TypeZookeeper, nil
	default:
		return "", fmt.Errorf("provider: unknown type %q", s)
	}
}

// Provider abstracts a config source. Implementations must be safe for
// concurrent use.
type Provider interface {
	Type() Type
	Load(ctx context.Context) ([]byte, error)
	// Watch signals on the returned channel when the source changes.
	// Returns a nil channel if the backend does not support watching.
	Watch(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// Config configures Provider creation via New.
type Config struct {
	Type      Type
	Path      string   // file path, or remote key path
	Endpoints []string // remote backend addresses
}

// New builds the Provider named by cfg.Type.
func New(cfg Config) (Provider, error) {
	switch cfg.Type {
	case TypeFile, "":
		return NewFileProvider(cfg.Path)
	case TypeConsul:
		return NewConsulProvider(cfg.Endpoints, cfg.Path)
	case TypeEtcd:
		return NewEtcdProvider(cfg.Endpoints, cfg.Path)
	case TypeZookeeper:
		return NewZookeeperProvider(cfg.Endpoints, cfg.Path)
	default:
		return nil, fmt.Errorf("provider: unknown type %q", cfg.Type)
	}
}
