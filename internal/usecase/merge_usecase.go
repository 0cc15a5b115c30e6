package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// MergeUsecase はサインイン時のゲストカート取り込み。
// 取り込み全体を1トランザクションで行い、(account, snapshot) のマージ記録で
// 再実行を無害化する。ゲストカートの消去はコミット後にだけ行う。
type MergeUsecase struct {
	tx    repo.TransactionManager
	guest repo.GuestCartStore
	log   *zap.Logger

	attempts int
	backoff  time.Duration
}

func NewMergeUsecase(tx repo.TransactionManager, guest repo.GuestCartStore, log *zap.Logger) *MergeUsecase {
	return &MergeUsecase{
		tx:       tx,
		guest:    guest,
		log:      log,
		attempts: 3,
		backoff:  100 * time.Millisecond,
	}
}

type MergeGuestCartInput struct {
	DeviceID string
	Items    []model.GuestCartItem
}

// MergeGuestCart はゲスト明細をアカウントカートへ加算で取り込む。
// 同じスナップショットでの再呼び出し（クラッシュ後の再実行・UIの二重発火）は
// 二重加算にならない。
func (u *MergeUsecase) MergeGuestCart(ctx context.Context, accountID int64, in MergeGuestCartInput) error {
	if accountID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return NewHTTPError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("invalid product_id at item %d", i))
		}
		if it.Quantity < 1 {
			return NewHTTPError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("invalid quantity for product %d", it.ProductID))
		}
	}

	if len(in.Items) == 0 {
		//空のスナップショットでも消去だけは行う
		u.clearGuestStore(ctx, in.DeviceID)
		return nil
	}

	hash := snapshotHash(accountID, in.Items)

	var lastErr error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		err := u.mergeOnce(ctx, accountID, hash, in.Items)
		if err == nil {
			//消去の失敗はマージを巻き戻さない。記録があるので再実行は無害。
			u.clearGuestStore(ctx, in.DeviceID)
			return nil
		}
		if _, ok := AsHTTPError(err); ok {
			return err
		}

		lastErr = err
		u.log.Warn("guest cart merge attempt failed",
			zap.Int64("account_id", accountID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < u.attempts {
			select {
			case <-ctx.Done():
				return NewHTTPError(http.StatusInternalServerError, CodeStorage, "merge canceled")
			case <-time.After(time.Duration(attempt) * u.backoff):
			}
		}
	}

	u.log.Error("guest cart merge gave up, guest cart left intact",
		zap.Int64("account_id", accountID), zap.Error(lastErr))
	return NewHTTPError(http.StatusInternalServerError, CodeStorage, "merge failed")
}

func (u *MergeUsecase) mergeOnce(ctx context.Context, accountID int64, hash string, items []model.GuestCartItem) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		merged, err := r.CartMerges().Exists(ctx, accountID, hash)
		if err != nil {
			return err
		}
		if merged {
			//同じスナップショットは取り込み済み
			return nil
		}

		cart, err := r.Carts().GetOrCreateActiveByAccountID(ctx, accountID)
		if err != nil {
			return err
		}

		for _, it := range items {
			if err := r.CartItems().AddQuantity(ctx, cart.ID, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}

		return r.CartMerges().Create(ctx, model.CartMerge{
			AccountID:    accountID,
			SnapshotHash: hash,
			CreatedAt:    time.Now(),
		})
	})
}

func (u *MergeUsecase) clearGuestStore(ctx context.Context, deviceID string) {
	if deviceID == "" {
		return
	}
	if err := u.guest.Clear(ctx, deviceID); err != nil {
		u.log.Warn("guest cart clear after merge failed", zap.String("device_id", deviceID), zap.Error(err))
	}
}

// スナップショットのハッシュ。順序に依存しないようソートして畳む。
// AddedAtを含めるのは同一性のため：同じ商品・同じ数量でも、後日の別の
// ゲストセッションは別のスナップショットであり、過去のマージ記録に
// 吸収されてはならない（吸収されると消去だけが走って明細が消える）。
func snapshotHash(accountID int64, items []model.GuestCartItem) string {
	sorted := make([]model.GuestCartItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].AddedAt.Before(sorted[j].AddedAt)
	})

	h := sha256.New()
	fmt.Fprintf(h, "%d", accountID)
	for _, it := range sorted {
		fmt.Fprintf(h, "|%d:%d:%d", it.ProductID, it.Quantity, it.AddedAt.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
