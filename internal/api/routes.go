package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/quardintel/product-catalog/internal/api/handler"
	"github.com/quardintel/product-catalog/internal/core/domain"
)

// route is one entry of the protected route table. Every route under /api
// must list the roles allowed to call it.
type route struct {
	method  string
	path    string
	roles   []domain.Role
	handler echo.HandlerFunc
}

var (
	anyRole   = []domain.Role{domain.RoleUser, domain.RoleAdmin}
	adminOnly = []domain.Role{domain.RoleAdmin}
)

func productRoutes(h *handler.ProductHandler) []route {
	return []route{
		{http.MethodGet, "/products", anyRole, h.List},
		{http.MethodGet, "/products/:id", anyRole, h.Get},
		{http.MethodPost, "/products", adminOnly, h.Create},
		{http.MethodPut, "/products/:id", adminOnly, h.Update},
		{http.MethodDelete, "/products/:id", adminOnly, h.Delete},
		{http.MethodPost, "/products/:id/sell/:quantity", adminOnly, h.Sell},
		{http.MethodGet, "/categories", anyRole, h.ListCategories},
	}
}
