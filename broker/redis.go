// Package broker adapts a concrete key-value store to the alert.Broker
// contract. The broker is an external collaborator per spec.md §1 — this
// is the one concrete implementation the runtime wires up, grounded on the
// go-redis client surfaced across the retrieved example manifests.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package broker

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// commandTimeout bounds a single Publish/RPush call: the alert path must
// never block a classification worker indefinitely on a stalled broker.
const commandTimeout = 2 * time.Second

// RedisBroker implements alert.Broker over a github.com/redis/go-redis/v9
// client, covering both the TCP and unix-socket forms spec §6.2 allows for
// redis_ip/redis_port and redis_socket_path.
type RedisBroker struct {
	client *redis.Client
}

// Options mirrors the handful of redis connection fields from spec §6.2's
// configuration JSON (alongside alert.Config's sink naming fields).
type Options struct {
	SocketPath string // unix socket, takes priority over Addr when set
	Addr       string // "host:port"
	Password   string
	DB         int
}

// NewRedisBroker builds a client; it does not dial eagerly (go-redis
// connects lazily on first command, matching AlertManager's own lazy
// connect-on-first-alert behaviour in the original).
func NewRedisBroker(opts Options) *RedisBroker {
	network := "tcp"
	addr := opts.Addr
	if opts.SocketPath != "" {
		network = "unix"
		addr = opts.SocketPath
	}
	return &RedisBroker{client: redis.NewClient(&redis.Options{
		Network:  network,
		Addr:     addr,
		Password: opts.Password,
		DB:       opts.DB,
	})}
}

func (b *RedisBroker) Publish(channel string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *RedisBroker) RPush(list string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.client.RPush(ctx, list, payload).Err()
}

// Close releases the underlying connection pool.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
