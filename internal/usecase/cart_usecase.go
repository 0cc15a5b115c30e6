package usecase

import (
	"context"
	"fmt"
	"net/http"

	repo "storefront/internal/repository"
)

// CartUsecase はアカウントカート（/cart）の業務ロジック。
// 表示は現在のカタログ価格で組み立てる。注文金額はここの値ではなく、
// 注文作成時のスナップショットから決まる。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

type CartItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"` // 現在のカタログ価格（表示用）
	Stock     int64  `json:"stock"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

// 加算（additive）
type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, accountID int64) (CartResponse, error) {
	if accountID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByAccountID(ctx, accountID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
// 加算は1文のアトミックなupsertなので、並行する追加は両方反映される。
func (u *CartUsecase) AddToCart(ctx context.Context, accountID int64, in AddCartInput) (CartResponse, error) {
	if accountID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid quantity")
	}

	// ACTIVEカート取得（無ければ作成）
	cart, err := u.cartRepo.GetOrCreateActiveByAccountID(ctx, accountID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	// 商品チェック（公開のみ）
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

	if err := u.cartItemRepo.AddQuantity(ctx, cart.ID, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// SetQuantity は絶対値での数量変更。0以下は削除として扱う。
func (u *CartUsecase) SetQuantity(ctx context.Context, accountID int64, productID int64, qty int64) (CartResponse, error) {
	if accountID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByAccountID(ctx, accountID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	if qty <= 0 {
		//削除は冪等
		if err := u.cartItemRepo.DeleteByProduct(ctx, cart.ID, productID); err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}
		return u.buildCartResponse(ctx, cart.ID)
	}

	if err := u.cartItemRepo.SetQuantity(ctx, cart.ID, productID, qty); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("product %d is not in the cart", productID))
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// RemoveFromCart は明細削除（冪等）。
func (u *CartUsecase) RemoveFromCart(ctx context.Context, accountID int64, productID int64) (CartResponse, error) {
	if accountID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid product_id")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByAccountID(ctx, accountID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	if err := u.cartItemRepo.DeleteByProduct(ctx, cart.ID, productID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// cartIDの明細をまとめてCartResponseを作る。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var total int64 = 0

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err == repo.ErrNotFound {
			//カタログから消えた行は表示しない
			continue
		}
		if err != nil {
			//障害で一部だけ欠けたカートを返さない
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
		}
		if !p.IsActive {
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
