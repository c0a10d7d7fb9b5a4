package web

import (
	"fmt"
	"net/http"

	"retail-pos/internal/core"

	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	crateSummarySheet = "Crate Summary"
)

var crateSummaryHeadings = []string{
	"Product ID", "Product", "Received", "Returned", "Adjustments", "Current Balance", "Records",
}

// crateSummaryWorkbook lays the summary out as one header row plus one row per
// product, with a totals line for the record count.
func crateSummaryWorkbook(summary *core.CrateSummary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", crateSummarySheet); err != nil {
		f.Close()
		return nil, err
	}

	setRow := func(row int, values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(crateSummarySheet, cell, &values)
	}

	headings := make([]any, len(crateSummaryHeadings))
	for i, h := range crateSummaryHeadings {
		headings[i] = h
	}
	if err := setRow(1, headings...); err != nil {
		f.Close()
		return nil, err
	}

	row := 2
	for _, s := range summary.Summary {
		if err := setRow(row, s.ProductID, s.ProductName, s.TotalReceived, s.TotalReturned,
			s.Adjustments, s.CurrentBalance, s.Records); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	if err := setRow(row+1, "Total records", "", "", "", "", "", summary.TotalRecords); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// crateSummaryExport handles GET /api/crates/summary/export and streams the
// summary as an xlsx attachment. Accepts the same date filters as the JSON report.
func (h *Handler) crateSummaryExport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.GetCrateSummary(r.Context(), summaryRequest(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	f, err := crateSummaryWorkbook(summary)
	if err != nil {
		h.writeServiceError(w, r, fmt.Errorf("build crate summary workbook: %w", err))
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("crate-summary-%s.xlsx", h.now().In(h.loc).Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		h.log.WithError(err).WithField("request_id", requestIDFromContext(r.Context())).
			Error("crate summary export: write failed")
	}
}
