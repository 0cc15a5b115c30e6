package usecase

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// ProductUsecase は公開カタログの読み取り。
// このコアにとってカタログは外部データで、在庫減算以外の書き込みはしない。
type ProductUsecase struct {
	productRepo repo.ProductRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

type ListProductsInput struct {
	Page  int
	Limit int
	Q     string
}

type ProductResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
}

type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListResponse, error) {
	if in.Page <= 0 {
		return ProductListResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid page")
	}
	if in.Limit <= 0 || in.Limit > 100 {
		return ProductListResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid limit")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:  in.Page,
		Limit: in.Limit,
		Q:     in.Q,
	})
	if err != nil {
		return ProductListResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}

	resp := ProductListResponse{
		Items: make([]ProductResponse, 0, len(items)),
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}
	for _, p := range items {
		resp.Items = append(resp.Items, toProductResponse(p))
	}
	return resp, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, id int64) (ProductResponse, error) {
	if id <= 0 {
		return ProductResponse{}, NewHTTPError(http.StatusBadRequest, CodeValidation, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, id)
	if err == repo.ErrNotFound {
		return ProductResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}
	if err != nil {
		return ProductResponse{}, NewHTTPError(http.StatusInternalServerError, CodeStorage, "db error")
	}
	if !p.IsActive {
		//非公開は「存在しない扱い」
		return ProductResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}

	return toProductResponse(p), nil
}

func toProductResponse(p model.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
	}
}
