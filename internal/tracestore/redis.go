// Copyright 2025 The Dagflow Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracestore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink archives traces in Redis under a "dagflow:trace:<id>" key,
// for deployments that want durable trace archival across process
// restarts. Entries expire after TTL so an always-on debug header doesn't
// grow the keyspace without bound.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink wraps client with the given entry TTL; ttl <= 0 defaults
// to 24 hours.
func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSink{client: client, ttl: ttl}
}

func traceKey(txID string) string { return fmt.Sprintf("dagflow:trace:%s", txID) }

// Save stores trace under txID with the configured TTL.
func (s *RedisSink) Save(ctx context.Context, txID string, trace []byte) error {
	if err := s.client.Set(ctx, traceKey(txID), trace, s.ttl).Err(); err != nil {
		return fmt.Errorf("tracestore: redis save %s: %w", txID, err)
	}
	return nil
}

// Get fetches the trace saved under txID, if it still exists.
func (s *RedisSink) Get(ctx context.Context, txID string) ([]byte, error) {
	b, err := s.client.Get(ctx, traceKey(txID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tracestore: redis get %s: %w", txID, err)
	}
	return b, nil
}
