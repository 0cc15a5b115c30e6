package handler

import (
	"net/http"
	"strconv"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /guest/cartのHTTP（未ログインカート、X-Device-IDスコープ）
type GuestCartHandler struct {
	uc *usecase.GuestCartUsecase
}

// DI
func NewGuestCartHandler(uc *usecase.GuestCartUsecase) *GuestCartHandler {
	return &GuestCartHandler{uc: uc}
}

func (h *GuestCartHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/guest/cart")

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.PATCH("/:productId", h.setQuantity)
	g.DELETE("/:productId", h.removeItem)
	g.DELETE("", h.clear)
}

func (h *GuestCartHandler) getCart(c echo.Context) error {
	out, err := h.uc.GetCart(c.Request().Context(), c.Request().Header.Get(deviceIDHeader))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *GuestCartHandler) addToCart(c echo.Context) error {
	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeValidation})
	}

	out, err := h.uc.AddToCart(c.Request().Context(), c.Request().Header.Get(deviceIDHeader), usecase.AddCartInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *GuestCartHandler) setQuantity(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: usecase.CodeValidation})
	}

	var req SetQuantityRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body", Code: usecase.CodeValidation})
	}

	out, err := h.uc.SetQuantity(c.Request().Context(), c.Request().Header.Get(deviceIDHeader), productID, req.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *GuestCartHandler) removeItem(c echo.Context) error {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid product id", Code: usecase.CodeValidation})
	}

	out, err := h.uc.RemoveFromCart(c.Request().Context(), c.Request().Header.Get(deviceIDHeader), productID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *GuestCartHandler) clear(c echo.Context) error {
	if err := h.uc.ClearCart(c.Request().Context(), c.Request().Header.Get(deviceIDHeader)); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
