//go:build integration

// Package containers starts throwaway service containers for integration
// tests. It is compiled only with the "integration" build tag so unit test
// builds do not depend on Docker.
//
//	res, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer res.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// DefaultRedisImage backs the shared key-set store tests.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult is a started Redis container and its redis:// URI. The
// caller terminates the container.
type RedisResult struct {
	Container  *tcredis.RedisContainer
	ConnString string
}

// StartRedis starts DefaultRedisImage without authentication.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: start redis: %w", err)
	}
	conn, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: redis connection string: %w", err)
	}
	return &RedisResult{Container: container, ConnString: conn}, nil
}
