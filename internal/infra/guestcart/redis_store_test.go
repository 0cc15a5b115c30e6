package guestcart

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, time.Hour, zap.NewNop()), mr
}

func TestRedisStore_AddAccumulates(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	assert.NoError(t, store.Add(ctx, "device-1", 5, 2))
	assert.NoError(t, store.Add(ctx, "device-1", 5, 1))
	assert.NoError(t, store.Add(ctx, "device-1", 7, 1))

	items := store.Get(ctx, "device-1")
	assert.Len(t, items, 2)

	byProduct := map[int64]model.GuestCartItem{}
	for _, it := range items {
		byProduct[it.ProductID] = it
	}
	assert.Equal(t, int64(3), byProduct[5].Quantity)
	assert.Equal(t, int64(1), byProduct[7].Quantity)
	assert.False(t, byProduct[5].AddedAt.IsZero())
}

func TestRedisStore_SetQuantityZeroRemovesLine(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	assert.NoError(t, store.Add(ctx, "device-1", 5, 2))
	assert.NoError(t, store.SetQuantity(ctx, "device-1", 5, 0))

	assert.Empty(t, store.Get(ctx, "device-1"))
}

func TestRedisStore_CorruptPayloadReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	mr.Set("guest_cart:device-1", "{not json")

	assert.Empty(t, store.Get(ctx, "device-1"))

	//破損スナップショットの上にも書き込める
	assert.NoError(t, store.Add(ctx, "device-1", 5, 1))
	items := store.Get(ctx, "device-1")
	assert.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].ProductID)
}

func TestRedisStore_UpdateFoldsInLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	assert.NoError(t, store.Add(ctx, "device-1", 5, 1))

	//別クライアントの書き込みが先行しても、その上に畳み込む（後勝ちで消さない）
	mr.Set("guest_cart:device-1", `[{"product_id":5,"quantity":10,"added_at":"2026-08-01T10:00:00Z"}]`)

	assert.NoError(t, store.Add(ctx, "device-1", 7, 2))

	items := store.Get(ctx, "device-1")
	byProduct := map[int64]int64{}
	for _, it := range items {
		byProduct[it.ProductID] = it.Quantity
	}
	//先行の更新（数量10）が上書きで消えていない
	assert.Equal(t, int64(10), byProduct[5])
	assert.Equal(t, int64(2), byProduct[7])
}

func TestRedisStore_ClearDeletesSnapshot(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	assert.NoError(t, store.Add(ctx, "device-1", 5, 1))
	assert.NoError(t, store.Clear(ctx, "device-1"))

	assert.Empty(t, store.Get(ctx, "device-1"))
	assert.False(t, mr.Exists("guest_cart:device-1"))
}
