package redis

import (
	"context"
	"testing"
	"time"

	"github.com/GreaLake/checkIn/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), &config.RedisConfig{Addr: mr.Addr()}, time.Second)
	require.NoError(t, err)
	assert.NoError(t, Ping(context.Background(), client))
	assert.NoError(t, Close(client))
	assert.NoError(t, Close(nil))

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), &config.RedisConfig{Addr: addr}, 200*time.Millisecond)
	assert.Error(t, err)
}
