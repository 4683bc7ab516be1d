package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a client pointing at it
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisStore_Contract(t *testing.T) {
	client, _ := setupTestRedis(t)
	runStoreContract(t, NewRedisStore(client, "test"))
}

func TestRedisStore_KeyLayout(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, "shop")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, KeyProducts, []byte(`[]`)))

	stored, err := mr.Get("shop:" + KeyProducts)
	require.NoError(t, err)
	assert.Equal(t, "[]", stored)

	version, err := mr.Get("shop:__version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestRedisStore_WatchSkipsOwnWrites(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := NewRedisStore(client, "shop")
	reader := NewRedisStore(client, "shop")

	writerCh, err := writer.Watch(ctx)
	require.NoError(t, err)
	readerCh, err := reader.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, writer.Set(ctx, KeyCampaigns, []byte(`[{"id":"c1"}]`)))

	select {
	case change := <-readerCh:
		assert.Equal(t, KeyCampaigns, change.Key)
		assert.Equal(t, writer.Origin(), change.Origin)
		assert.Equal(t, uint64(1), change.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not receive change")
	}

	select {
	case change := <-writerCh:
		t.Fatalf("writer received its own change: %+v", change)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStore(client, "shop")
	ctx := context.Background()

	_, err := s.Get(ctx, KeyProducts)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, KeyProducts, []byte(`[]`)), ErrUnavailable)
}

func TestMapRedisError_OOM(t *testing.T) {
	err := mapRedisError("set", redis.Nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = mapRedisError("set", oomError("OOM command not allowed when used memory > 'maxmemory'"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

type oomError string

func (e oomError) Error() string { return string(e) }
