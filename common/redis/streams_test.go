package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream_ReadRange(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	id, err := PublishJSONToStream(ctx, client, "checkin:events", map[string]any{"entry_id": "e-1", "event": "checked_in"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := ReadRange(ctx, client, "checkin:events", "-", "+", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.JSONEq(t, `{"entry_id":"e-1","event":"checked_in"}`, msgs[0].Values["data"].(string))
}

func TestStreamValue(t *testing.T) {
	cases := map[string]interface{}{
		"abc":   "abc",
		"42":    42,
		"9.5":   9.5,
		"true":  true,
		`[1,2]`: []int{1, 2},
	}
	for want, in := range cases {
		got, err := streamValue(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
