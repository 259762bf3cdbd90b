package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/quardintel/product-catalog/internal/core/domain"
	"github.com/quardintel/product-catalog/internal/core/ports"
)

// IdempotencyKeyHeader lets clients retry a sale without selling twice.
const IdempotencyKeyHeader = "Idempotency-Key"

// ProductHandler handles HTTP requests for catalog operations.
type ProductHandler struct {
	service ports.CatalogService
}

func NewProductHandler(service ports.CatalogService) *ProductHandler {
	return &ProductHandler{service: service}
}

// List handles GET /api/products.
//
// @Summary      List products
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Product
// @Success      204  "catalog is empty"
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/products [get]
func (h *ProductHandler) List(c echo.Context) error {
	products, err := h.service.GetAll(c.Request().Context())
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, products)
}

// ListCategories handles GET /api/categories.
//
// @Summary      List categories
// @Tags         categories
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Category
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/categories [get]
func (h *ProductHandler) ListCategories(c echo.Context) error {
	categories, err := h.service.Categories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

// Get handles GET /api/products/:id.
//
// @Summary      Get a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Product ID"
// @Success      200  {object}  domain.Product
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/products/{id} [get]
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	p, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Create handles POST /api/products.
//
// @Summary      Create a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      productRequest  true  "Product"
// @Success      201   {object}  domain.Product
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/products [post]
func (h *ProductHandler) Create(c echo.Context) error {
	input, err := bindProduct(c)
	if err != nil {
		return err
	}
	p, err := h.service.Create(c.Request().Context(), input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

// Update handles PUT /api/products/:id. Omitting categories keeps the
// current ones.
//
// @Summary      Update a product
// @Tags         products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int             true  "Product ID"
// @Param        body  body      productRequest  true  "Product"
// @Success      200   {object}  domain.Product
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/products/{id} [put]
func (h *ProductHandler) Update(c echo.Context) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	input, err := bindProduct(c)
	if err != nil {
		return err
	}
	p, err := h.service.Update(c.Request().Context(), id, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Delete handles DELETE /api/products/:id.
//
// @Summary      Delete a product
// @Tags         products
// @Security     BearerAuth
// @Param        id   path  int  true  "Product ID"
// @Success      204
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/products/{id} [delete]
func (h *ProductHandler) Delete(c echo.Context) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	deleted, err := h.service.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrProductNotFound
	}
	return c.NoContent(http.StatusNoContent)
}

// Sell handles POST /api/products/:id/sell/:quantity.
//
// @Summary      Sell units of a product
// @Tags         products
// @Produce      json
// @Security     BearerAuth
// @Param        id               path    int     true   "Product ID"
// @Param        quantity         path    int     true   "Units to sell"
// @Param        Idempotency-Key  header  string  false  "Deduplicates retried sales"
// @Success      200  {object}  saleResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/products/{id}/sell/{quantity} [post]
func (h *ProductHandler) Sell(c echo.Context) error {
	id, err := pathInt64(c, "id")
	if err != nil {
		return err
	}
	qty, err := strconv.Atoi(c.Param("quantity"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be an integer")
	}

	res, err := h.service.SellOnce(c.Request().Context(), id, qty, c.Request().Header.Get(IdempotencyKeyHeader))
	if err != nil {
		return err
	}

	msg := "Product sold successfully"
	if res.Replayed {
		msg = "Sale already processed"
	}
	return c.JSON(http.StatusOK, saleResponse{Message: msg, Product: res.Product, Replayed: res.Replayed})
}

func pathInt64(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be an integer")
	}
	return v, nil
}

func bindProduct(c echo.Context) (ports.ProductInput, error) {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return ports.ProductInput{}, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return ports.ProductInput{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	input := ports.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Quantity:    *req.Quantity,
	}
	for _, cr := range req.Categories {
		input.Categories = append(input.Categories, ports.CategoryRef{ID: cr.ID, Name: cr.Name})
	}
	return input, nil
}
