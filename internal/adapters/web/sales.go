package web

import (
	"net/http"

	"retail-pos/internal/app"

	"github.com/shopspring/decimal"
)

type saleItemBody struct {
	ProductID int              `json:"product_id" validate:"gt=0"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type createSaleBody struct {
	Items           []saleItemBody `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string         `json:"payment_method" validate:"required"`
	CustomerName    string         `json:"customer_name"`
	CustomerContact string         `json:"customer_contact"`
	Notes           string         `json:"notes"`
}

// listSales handles GET /api/sales?page=&limit=&startDate=&endDate=&paymentMethod=.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSales(r.Context(), app.ListSalesRequest{
		Page:          queryInt(r, "page"),
		Limit:         queryInt(r, "limit"),
		StartDate:     firstQuery(r, "startDate", "start_date"),
		EndDate:       firstQuery(r, "endDate", "end_date"),
		PaymentMethod: firstQuery(r, "paymentMethod", "payment_method"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"sales": result.Sales, "pagination": result.Pagination})
}

// getSale handles GET /api/sales/{id}.
func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	sale, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, sale)
}

// createSale handles POST /api/sales.
func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var body createSaleBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.CreateSaleRequest{
		UserID:          authFromContext(r.Context()).UserID,
		PaymentMethod:   body.PaymentMethod,
		CustomerName:    body.CustomerName,
		CustomerContact: body.CustomerContact,
		Notes:           body.Notes,
	}
	for _, it := range body.Items {
		req.Items = append(req.Items, app.SaleItemRequest(it))
	}

	sale, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sale)
}

// voidSale handles POST /api/sales/{id}/void.
func (h *Handler) voidSale(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		VoidReason string `json:"void_reason" validate:"required"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	sale, err := h.svc.VoidSale(r.Context(), app.VoidSaleRequest{
		UserID: authFromContext(r.Context()).UserID,
		SaleID: id,
		Reason: body.VoidReason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"message": "Sale voided successfully", "sale": sale})
}

// firstQuery returns the first non-empty query value among names. Both camelCase
// and snake_case spellings of filter parameters are accepted.
func firstQuery(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, n := range names {
		if v := q.Get(n); v != "" {
			return v
		}
	}
	return ""
}
