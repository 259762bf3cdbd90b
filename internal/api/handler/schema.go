package handler

import "github.com/quardintel/product-catalog/internal/core/domain"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
// Details is only set on 401/403 from the role guard.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Auth ---

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Message  string      `json:"message"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	Token    string      `json:"token"`
}

// --- Products ---

// categoryRequest references an existing category by id or names one.
// At least one of the two is required; see validateCategoryRequest.
type categoryRequest struct {
	ID   int64  `json:"id"   validate:"omitempty,gt=0"`
	Name string `json:"name" validate:"omitempty,min=2,max=100"`
}

// productRequest is shared by create and update. Price and Quantity are
// pointers so that an explicit zero quantity is distinguishable from absence.
type productRequest struct {
	Name        string            `json:"name"        validate:"required,min=2,max=255"`
	Description string            `json:"description" validate:"required"`
	Price       *float64          `json:"price"       validate:"required,gt=0"`
	Quantity    *int              `json:"quantity"    validate:"required,gte=0"`
	Categories  []categoryRequest `json:"categories"  validate:"omitempty,dive"`
}

type saleResponse struct {
	Message  string          `json:"message"`
	Product  *domain.Product `json:"product"`
	Replayed bool            `json:"replayed"`
}
