package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, "pos:test:"), mr
}

func TestStore_Get_Success(t *testing.T) {
	store, mr := setupTestRedis(t)

	require.NoError(t, mr.Set("pos:test:pos_products", `[{"id":"A1"}]`))

	got, err := store.Get(context.Background(), "pos_products")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"A1"}]`, string(got))
}

func TestStore_Get_NotFound(t *testing.T) {
	store, _ := setupTestRedis(t)

	_, err := store.Get(context.Background(), "pos_products")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestStore_Set_UsesPrefixWithoutTTL(t *testing.T) {
	store, mr := setupTestRedis(t)

	require.NoError(t, store.Set(context.Background(), "pos_cart", []byte(`[]`)))

	got, err := mr.Get("pos:test:pos_cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)
	assert.Zero(t, mr.TTL("pos:test:pos_cart"))
}

func TestStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("pos:test:pos_cart", `[]`))

	require.NoError(t, store.Delete(context.Background(), "pos_cart"))
	assert.False(t, mr.Exists("pos:test:pos_cart"))
}

func TestStore_ConnectionError(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	assert.Error(t, store.Ping(context.Background()))
	_, err := store.Get(context.Background(), "pos_cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	_, err = Connect(context.Background(), "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
