package web

import (
	"net/http"

	"retail-pos/internal/app"

	"github.com/shopspring/decimal"
)

type deliveryItemBody struct {
	ProductID  int              `json:"product_id" validate:"gt=0"`
	Quantity   int              `json:"quantity" validate:"gt=0"`
	UnitCost   *decimal.Decimal `json:"unit_cost"`
	ExpiryDate string           `json:"expiry_date"`
}

type createDeliveryBody struct {
	Supplier     string             `json:"supplier" validate:"required"`
	DeliveryDate string             `json:"delivery_date" validate:"required"`
	Notes        string             `json:"notes"`
	Items        []deliveryItemBody `json:"items" validate:"required,min=1,dive"`
}

type updateDeliveryBody struct {
	Supplier     *string `json:"supplier" validate:"omitempty,min=1"`
	DeliveryDate *string `json:"delivery_date"`
	Notes        *string `json:"notes"`
	IsReceived   *bool   `json:"is_received"`
}

// listDeliveries handles GET /api/deliveries?page=&limit=&startDate=&endDate=&supplier=.
func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListDeliveries(r.Context(), app.ListDeliveriesRequest{
		Page:      queryInt(r, "page"),
		Limit:     queryInt(r, "limit"),
		StartDate: firstQuery(r, "startDate", "start_date"),
		EndDate:   firstQuery(r, "endDate", "end_date"),
		Supplier:  r.URL.Query().Get("supplier"),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{"deliveries": result.Deliveries, "pagination": result.Pagination})
}

// getDelivery handles GET /api/deliveries/{id}.
func (h *Handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.svc.GetDelivery(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

// createDelivery handles POST /api/deliveries.
func (h *Handler) createDelivery(w http.ResponseWriter, r *http.Request) {
	var body createDeliveryBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req := app.CreateDeliveryRequest{
		UserID:       authFromContext(r.Context()).UserID,
		Supplier:     body.Supplier,
		DeliveryDate: body.DeliveryDate,
		Notes:        body.Notes,
	}
	for _, it := range body.Items {
		req.Items = append(req.Items, app.DeliveryItemRequest(it))
	}

	d, err := h.svc.CreateDelivery(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, d)
}

// updateDelivery handles PUT /api/deliveries/{id}. Only header fields change;
// line items and stock are fixed once recorded.
func (h *Handler) updateDelivery(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var body updateDeliveryBody
	if !decodeJSON(w, r, &body) {
		return
	}

	d, err := h.svc.UpdateDelivery(r.Context(), id, app.UpdateDeliveryRequest(body))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, d)
}

// listSuppliers handles GET /api/deliveries/meta/suppliers.
func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, suppliers)
}
