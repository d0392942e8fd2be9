// Copyright 2025 TradeFlow
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

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	executionKeyPrefix = "pipeline:execution:"
	executionIndexKey  = "pipeline:executions"

	// defaultExecutionTTL bounds how long finished executions stay in
	// Redis. Regulatory reports themselves are persisted by the audit
	// trail, not here.
	defaultExecutionTTL = 24 * time.Hour

	redisOpTimeout = 5 * time.Second
)

// RedisExecutionStore persists pipeline executions in Redis as JSON values
// with a TTL, plus a set index for listing. It lets multiple orchestrator
// instances share execution state.
type RedisExecutionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisExecutionStore connects to Redis at the given URL
// (redis://host:port/db) and verifies the connection with a ping.
func NewRedisExecutionStore(redisURL string) (*RedisExecutionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisExecutionStore{client: client, ttl: defaultExecutionTTL}, nil
}

// NewRedisExecutionStoreWithClient wraps an existing client. Used by tests.
func NewRedisExecutionStoreWithClient(client *redis.Client, ttl time.Duration) *RedisExecutionStore {
	if ttl <= 0 {
		ttl = defaultExecutionTTL
	}
	return &RedisExecutionStore{client: client, ttl: ttl}
}

func (s *RedisExecutionStore) SaveExecution(execution *PipelineExecution) error {
	return s.write(execution)
}

func (s *RedisExecutionStore) UpdateExecution(execution *PipelineExecution) error {
	return s.write(execution)
}

func (s *RedisExecutionStore) write(execution *PipelineExecution) error {
	data, err := json.Marshal(execution)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.Set(ctx, executionKeyPrefix+execution.ID, data, s.ttl)
	pipe.SAdd(ctx, executionIndexKey, execution.ID)
	pipe.Expire(ctx, executionIndexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist execution %s: %w", execution.ID, err)
	}
	return nil
}

func (s *RedisExecutionStore) GetExecution(id string) (*PipelineExecution, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, executionKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("execution not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read execution %s: %w", id, err)
	}

	var execution PipelineExecution
	if err := json.Unmarshal(data, &execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}
	return &execution, nil
}

func (s *RedisExecutionStore) ListExecutions() ([]*PipelineExecution, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	ids, err := s.client.SMembers(ctx, executionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	executions := make([]*PipelineExecution, 0, len(ids))
	for _, id := range ids {
		execution, err := s.GetExecution(id)
		if err != nil {
			// Value expired but the index entry has not; drop it.
			s.client.SRem(ctx, executionIndexKey, id)
			continue
		}
		executions = append(executions, execution)
	}
	return executions, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisExecutionStore) Close() error {
	return s.client.Close()
}
