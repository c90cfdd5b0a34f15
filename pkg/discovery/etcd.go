// Package discovery resolves the archive's control-request/control-response
// endpoints from etcd instead of static configuration, for deployments
// where the archive's host:port is not fixed. Grounded on the teacher's
// pkg/etcd.EtcdClient: a thin wrapper over clientv3 with per-call timeouts
// and warning-level retry logging, narrowed here to the two-key read this
// package needs.
package discovery

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"archiveclient/pkg/logging"
)

// Config is the subset of the teacher's etcd.Config this resolver needs:
// connection endpoints, a request timeout, and the key prefix under which
// the archive's endpoints are published.
type Config struct {
	Endpoints      []string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	KeyPrefix      string
}

// Keys published under Config.KeyPrefix, holding "host:port" values.
const (
	requestEndpointKey  = "request-endpoint"
	responseEndpointKey = "response-endpoint"
)

// Resolver reads the archive's published request/response endpoints from
// etcd on demand; it does not watch or cache.
type Resolver struct {
	client *clientv3.Client
	cfg    Config
}

func NewResolver(cfg Config) (*Resolver, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("discovery: no etcd endpoints configured")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 1000 * time.Millisecond
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 1 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: etcd connect: %w", err)
	}
	return &Resolver{client: client, cfg: cfg}, nil
}

func (r *Resolver) Close() error {
	return r.client.Close()
}

// ResolveEndpoints reads the request and response "host:port" values
// published under cfg.KeyPrefix.
func (r *Resolver) ResolveEndpoints(ctx context.Context) (requestEndpoint, responseEndpoint string, err error) {
	requestEndpoint, err = r.get(ctx, r.cfg.KeyPrefix+requestEndpointKey)
	if err != nil {
		return "", "", err
	}
	responseEndpoint, err = r.get(ctx, r.cfg.KeyPrefix+responseEndpointKey)
	if err != nil {
		return "", "", err
	}
	return requestEndpoint, responseEndpoint, nil
}

func (r *Resolver) get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	resp, err := r.client.Get(ctx, key)
	if err != nil {
		logging.Errorf("discovery: etcd get %s: %v", key, err)
		return "", fmt.Errorf("discovery: etcd get %s: %w", key, err)
	}
	if len(resp.Kvs) == 0 {
		return "", fmt.Errorf("discovery: key %s not found", key)
	}
	return string(resp.Kvs[0].Value), nil
}
