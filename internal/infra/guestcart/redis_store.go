package guestcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ゲストカートのredis実装。デバイスIDごとにJSONスナップショット1件。
// 読み取りはfail-open：キー欠落・壊れたJSON・redis障害はすべて空カート。
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, log: log}
}

func storeKey(deviceID string) string {
	return fmt.Sprintf("guest_cart:%s", deviceID)
}

// 取得。エラーは空カートに化ける（ゲストカートは決して失敗しない）。
func (s *RedisStore) Get(ctx context.Context, deviceID string) []model.GuestCartItem {
	data, err := s.client.Get(ctx, storeKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.GuestCartItem{}
	}
	if err != nil {
		s.log.Warn("guest cart read failed, treating as empty", zap.String("device_id", deviceID), zap.Error(err))
		return []model.GuestCartItem{}
	}

	var items []model.GuestCartItem
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Warn("guest cart payload corrupt, treating as empty", zap.String("device_id", deviceID), zap.Error(err))
		return []model.GuestCartItem{}
	}
	return items
}

// 加算。行が無ければ作る。
func (s *RedisStore) Add(ctx context.Context, deviceID string, productID int64, delta int64) error {
	return s.update(ctx, deviceID, func(items []model.GuestCartItem) []model.GuestCartItem {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity += delta
				return items
			}
		}
		return append(items, model.GuestCartItem{
			ProductID: productID,
			Quantity:  delta,
			AddedAt:   time.Now(),
		})
	})
}

// 絶対値の設定。0以下は削除。
func (s *RedisStore) SetQuantity(ctx context.Context, deviceID string, productID int64, qty int64) error {
	if qty <= 0 {
		return s.Remove(ctx, deviceID, productID)
	}

	return s.update(ctx, deviceID, func(items []model.GuestCartItem) []model.GuestCartItem {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = qty
				return items
			}
		}
		return append(items, model.GuestCartItem{
			ProductID: productID,
			Quantity:  qty,
			AddedAt:   time.Now(),
		})
	})
}

func (s *RedisStore) Remove(ctx context.Context, deviceID string, productID int64) error {
	return s.update(ctx, deviceID, func(items []model.GuestCartItem) []model.GuestCartItem {
		kept := make([]model.GuestCartItem, 0, len(items))
		for _, it := range items {
			if it.ProductID != productID {
				kept = append(kept, it)
			}
		}
		return kept
	})
}

func (s *RedisStore) Clear(ctx context.Context, deviceID string) error {
	if err := s.client.Del(ctx, storeKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("guest cart clear failed: %w", err)
	}
	return nil
}

const maxUpdateRetries = 5

// 読み→書きをWATCH付きの楽観ループで行う。同一デバイスの並行更新が
// 割り込んだ場合はやり直すので、後勝ちで行が消えることはない。
func (s *RedisStore) update(ctx context.Context, deviceID string, fn func([]model.GuestCartItem) []model.GuestCartItem) error {
	key := storeKey(deviceID)

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			items := s.readForUpdate(ctx, tx, deviceID)
			items = fn(items)

			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if len(items) == 0 {
					pipe.Del(ctx, key)
					return nil
				}
				data, err := json.Marshal(items)
				if err != nil {
					return err
				}
				pipe.Set(ctx, key, data, s.ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("guest cart write failed: %w", err)
		}
		return nil
	}

	return fmt.Errorf("guest cart update kept conflicting for device %s", deviceID)
}

// WATCH中の読み取り。Getと同じfail-open（欠落・破損は空カート扱い）。
func (s *RedisStore) readForUpdate(ctx context.Context, tx *redis.Tx, deviceID string) []model.GuestCartItem {
	data, err := tx.Get(ctx, storeKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []model.GuestCartItem{}
	}
	if err != nil {
		s.log.Warn("guest cart read failed, treating as empty", zap.String("device_id", deviceID), zap.Error(err))
		return []model.GuestCartItem{}
	}

	var items []model.GuestCartItem
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Warn("guest cart payload corrupt, treating as empty", zap.String("device_id", deviceID), zap.Error(err))
		return []model.GuestCartItem{}
	}
	return items
}
