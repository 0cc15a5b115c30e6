package handler

import (
	"net/http"
	"strconv"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP（アカウントカート）
type CartHandler struct {
	uc      *usecase.CartUsecase
	mergeUC *usecase.MergeUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase, mergeUC *usecase.MergeUsecase) *CartHandler {
	return &CartHandler{uc: uc, mergeUC: mergeUC}
}

type AddCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type MergeCartRequest struct {
	Items []MergeCartItem `json:"items"`
}

type MergeCartItem struct {
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")
	g.Use(middleware.AuthJWT(cfg))

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.PATCH("/items/:productId", h.setQuantity)
	g.DELETE("/items/:productId", h.removeItem)
	g.POST("/merge", h.merge)
}

func (h *CartHandler) getCart(c echo.Context) error {
	accountID, ok := getAccountIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetCart(c.Request().Context(), accountID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	accountID, ok := getAccountIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeValidation})
	}

	out, err := h.uc.AddToCart(c.Request().Context(), accountID, usecase.AddCartInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) setQuantity(c echo.Context) error {
	accountID, ok := getAccountIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: usecase.CodeValidation})
	}

	var req SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeValidation})
	}

	out, err := h.uc.SetQuantity(c.Request().Context(), accountID, productID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) removeItem(c echo.Context) error {
	accountID, ok := getAccountIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: usecase.CodeValidation})
	}

	out, err := h.uc.RemoveFromCart(c.Request().Context(), accountID, productID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// ゲストカートのスナップショットをアカウントカートへ取り込む。
// デバイスIDはヘッダから。成功したときだけゲスト側が消える。
func (h *CartHandler) merge(c echo.Context) error {
	accountID, ok := getAccountIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req MergeCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeValidation})
	}

	//added_atはスナップショットの同一性の一部。落とすと後日の同内容セッションが
	//過去のマージ記録と衝突する。
	items := make([]model.GuestCartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, model.GuestCartItem{ProductID: it.ProductID, Quantity: it.Quantity, AddedAt: it.AddedAt})
	}

	err := h.mergeUC.MergeGuestCart(c.Request().Context(), accountID, usecase.MergeGuestCartInput{
		DeviceID: c.Request().Header.Get(deviceIDHeader),
		Items:    items,
	})
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.GetCart(c.Request().Context(), accountID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
