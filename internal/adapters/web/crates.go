package web

import (
	"net/http"

	"retail-pos/internal/app"
)

type crateReturnBody struct {
	ProductID      int    `json:"product_id" validate:"gt=0"`
	CratesReturned int    `json:"crates_returned" validate:"gt=0"`
	Notes          string `json:"notes"`
}

type crateAdjustBody struct {
	ProductID  int    `json:"product_id" validate:"gt=0"`
	Adjustment int    `json:"adjustment" validate:"ne=0"`
	Notes      string `json:"notes" validate:"required"`
}

type crateMutationResponse struct {
	Message    string `json:"message"`
	Record     any    `json:"record"`
	NewBalance int    `json:"new_balance"`
}

// crateBalances handles GET /api/crates/balances.
func (h *Handler) crateBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.GetCrateBalances(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, balances)
}

// crateHistory handles GET /api/crates/product/{id}?page=&limit=.
func (h *Handler) crateHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetCrateHistory(r.Context(), id, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"product_id":      result.ProductID,
		"product_name":    result.ProductName,
		"current_balance": result.CurrentBalance,
		"history":         result.History,
		"pagination":      result.Pagination,
	})
}

// crateReturn handles POST /api/crates/return.
func (h *Handler) crateReturn(w http.ResponseWriter, r *http.Request) {
	var body crateReturnBody
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.RecordCrateReturn(r.Context(), app.CrateReturnRequest{
		UserID:         authFromContext(r.Context()).UserID,
		ProductID:      body.ProductID,
		CratesReturned: body.CratesReturned,
		Notes:          body.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, crateMutationResponse{
		Message:    "Crate return recorded successfully",
		Record:     result.Entry,
		NewBalance: result.NewBalance,
	})
}

// crateAdjust handles POST /api/crates/adjust.
func (h *Handler) crateAdjust(w http.ResponseWriter, r *http.Request) {
	var body crateAdjustBody
	if !decodeJSON(w, r, &body) {
		return
	}

	result, err := h.svc.AdjustCrateBalance(r.Context(), app.CrateAdjustRequest{
		UserID:     authFromContext(r.Context()).UserID,
		ProductID:  body.ProductID,
		Adjustment: body.Adjustment,
		Notes:      body.Notes,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, crateMutationResponse{
		Message:    "Crate balance adjusted successfully",
		Record:     result.Entry,
		NewBalance: result.NewBalance,
	})
}

// crateSummary handles GET /api/crates/summary?startDate=&endDate=.
func (h *Handler) crateSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetCrateSummary(r.Context(), summaryRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, summary)
}

func summaryRequest(r *http.Request) app.CrateSummaryRequest {
	return app.CrateSummaryRequest{
		StartDate: firstQuery(r, "startDate", "start_date"),
		EndDate:   firstQuery(r, "endDate", "end_date"),
	}
}
