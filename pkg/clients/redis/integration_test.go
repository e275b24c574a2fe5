//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-security/internal/testutil/containers"
	"github.com/StricklySoft/stricklysoft-security/pkg/clients/redis"
)

func TestClient_AgainstRedisContainer(t *testing.T) {
	ctx := context.Background()
	res, err := containers.StartRedis(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Container.Terminate(ctx) })

	c, err := redis.NewClient(ctx, redis.Config{URI: res.ConnString})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Set(ctx, "jwks:it", `{"keys":[]}`, time.Minute))

	got, err := c.Get(ctx, "jwks:it")
	require.NoError(t, err)
	assert.Equal(t, `{"keys":[]}`, got)

	n, err := c.Del(ctx, "jwks:it")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = c.Get(ctx, "jwks:it")
	assert.True(t, redis.IsNil(err))
}
