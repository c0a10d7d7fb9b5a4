package web

import (
	"net/http"
	"strconv"

	"retail-pos/internal/app"

	"github.com/shopspring/decimal"
)

type createProductBody struct {
	Name             string           `json:"name" validate:"required,min=2,max=100"`
	Category         string           `json:"category" validate:"required"`
	UnitType         string           `json:"unit_type" validate:"required"`
	Description      string           `json:"description"`
	Barcode          string           `json:"barcode"`
	CostPrice        *decimal.Decimal `json:"cost_price" validate:"required"`
	SellingPrice     *decimal.Decimal `json:"selling_price" validate:"required"`
	CurrentStock     int              `json:"current_stock" validate:"gte=0"`
	MinimumStock     *int             `json:"minimum_stock" validate:"omitempty,gte=0"`
	HasCrateTracking bool             `json:"has_crate_tracking"`
}

// updateProductBody carries only the fields being changed. Stock is not
// editable here: it moves through sales and deliveries.
type updateProductBody struct {
	Name             *string          `json:"name" validate:"omitempty,min=2,max=100"`
	Category         *string          `json:"category"`
	UnitType         *string          `json:"unit_type"`
	Description      *string          `json:"description"`
	Barcode          *string          `json:"barcode"`
	CostPrice        *decimal.Decimal `json:"cost_price"`
	SellingPrice     *decimal.Decimal `json:"selling_price"`
	MinimumStock     *int             `json:"minimum_stock" validate:"omitempty,gte=0"`
	HasCrateTracking *bool            `json:"has_crate_tracking"`
	IsActive         *bool            `json:"is_active"`
}

// listProducts handles GET /api/products?category=&search=&lowStock=true.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lowStock := q.Get("lowStock")
	if lowStock == "" {
		lowStock = q.Get("low_stock")
	}
	low, _ := strconv.ParseBool(lowStock)

	result, err := h.svc.ListProducts(r.Context(), app.ListProductsRequest{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		LowStock: low,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Products)
}

// getProduct handles GET /api/products/{id}.
func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// createProduct handles POST /api/products.
func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var body createProductBody
	if !decodeJSON(w, r, &body) {
		return
	}

	p, err := h.svc.CreateProduct(r.Context(), app.CreateProductRequest{
		Name:             body.Name,
		Category:         body.Category,
		UnitType:         body.UnitType,
		Description:      body.Description,
		Barcode:          body.Barcode,
		CostPrice:        *body.CostPrice,
		SellingPrice:     *body.SellingPrice,
		CurrentStock:     body.CurrentStock,
		MinimumStock:     body.MinimumStock,
		HasCrateTracking: body.HasCrateTracking,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// updateProduct handles PUT /api/products/{id}.
func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body updateProductBody
	if !decodeJSON(w, r, &body) {
		return
	}

	p, err := h.svc.UpdateProduct(r.Context(), id, app.UpdateProductRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, p)
}

// deleteProduct handles DELETE /api/products/{id}. Products with history are
// retired instead of deleted; the response says which happened.
func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.RemoveProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"message":    result.Message,
		"removal":    result.Removal,
		"product_id": result.ProductID,
	})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ListCategories())
}

func (h *Handler) listUnitTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ListUnitTypes())
}
