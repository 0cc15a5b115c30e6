package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	repo "storefront/internal/repository"
)

// GuestCartUsecase は未ログイン（デバイスローカル相当）カートの業務ロジック。
// ストアはfail-openなので取得系にエラー条件はない。
type GuestCartUsecase struct {
	store       repo.GuestCartStore
	productRepo repo.ProductRepository
}

func NewGuestCartUsecase(store repo.GuestCartStore, productRepo repo.ProductRepository) *GuestCartUsecase {
	return &GuestCartUsecase{store: store, productRepo: productRepo}
}

func validDeviceID(deviceID string) bool {
	return strings.TrimSpace(deviceID) != ""
}

func (u *GuestCartUsecase) GetCart(ctx context.Context, deviceID string) (CartResponse, error) {
	if !validDeviceID(deviceID) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "device id is required")
	}

	items := u.store.Get(ctx, deviceID)

	respItems := make([]CartItemResponse, 0, len(items))
	var total int64 = 0
	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil || !p.IsActive {
			continue
		}
		lineTotal := p.Price * it.Quantity
		respItems = append(respItems, CartItemResponse{
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Stock:     p.Stock,
			Quantity:  it.Quantity,
			LineTotal: lineTotal,
		})
		total += lineTotal
	}

	return CartResponse{Items: respItems, Total: total}, nil
}

func (u *GuestCartUsecase) AddToCart(ctx context.Context, deviceID string, in AddCartInput) (CartResponse, error) {
	if !validDeviceID(deviceID) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "device id is required")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid quantity")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("unknown product %d", in.ProductID))
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, fmt.Sprintf("product %d is not available", in.ProductID))
	}

	if err := u.store.Add(ctx, deviceID, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "cart store error")
	}

	return u.GetCart(ctx, deviceID)
}

// 絶対値の設定。0以下は削除。
func (u *GuestCartUsecase) SetQuantity(ctx context.Context, deviceID string, productID int64, qty int64) (CartResponse, error) {
	if !validDeviceID(deviceID) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "device id is required")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}

	if err := u.store.SetQuantity(ctx, deviceID, productID, qty); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "cart store error")
	}

	return u.GetCart(ctx, deviceID)
}

func (u *GuestCartUsecase) RemoveFromCart(ctx context.Context, deviceID string, productID int64) (CartResponse, error) {
	if !validDeviceID(deviceID) {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "device id is required")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}

	if err := u.store.Remove(ctx, deviceID, productID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "cart store error")
	}

	return u.GetCart(ctx, deviceID)
}

func (u *GuestCartUsecase) ClearCart(ctx context.Context, deviceID string) error {
	if !validDeviceID(deviceID) {
		return NewHTTPError(http.StatusBadRequest, CodeValidation, "device id is required")
	}

	if err := u.store.Clear(ctx, deviceID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, CodeStorage, "cart store error")
	}
	return nil
}
