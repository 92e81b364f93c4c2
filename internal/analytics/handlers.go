package analytics

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pos/internal/common"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler exposes report endpoints.
type Handler struct {
	Svc *Service
}

// Routes mounts the report endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
	r.Get("/sales", h.Sales)
	r.Get("/stock", h.Stock)
	r.Get("/stock.xlsx", h.StockXLSX)
}

// DailySales handles GET /api/v1/reports/daily-sales?date=YYYY-MM-DD.
func (h *Handler) DailySales(w http.ResponseWriter, r *http.Request) {
	day := h.Svc.now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation(dateLayout, raw, h.Svc.location())
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid date, expected YYYY-MM-DD", nil)
			return
		}
		day = parsed
	}
	report, err := h.Svc.DailySales(r.Context(), day)
	if err != nil {
		common.WriteError(w, common.Internal(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": report})
}

// Sales handles GET /api/v1/reports/sales?days=N.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	days := common.AtoiDefault(r.URL.Query().Get("days"), h.Svc.DefaultRange)
	if days > 366 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "days must be at most 366", nil)
		return
	}
	rows, err := h.Svc.SalesRange(r.Context(), days)
	if err != nil {
		common.WriteError(w, common.Internal(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Stock handles GET /api/v1/reports/stock?q=&lowStock=true.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	report, ok := h.stock(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": report})
}

// StockXLSX handles GET /api/v1/reports/stock.xlsx.
func (h *Handler) StockXLSX(w http.ResponseWriter, r *http.Request) {
	report, ok := h.stock(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := WriteStockXLSX(&buf, report); err != nil {
		common.WriteError(w, common.Internal(err))
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="stock-report.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) (StockReport, bool) {
	q := r.URL.Query()
	lowOnly := false
	if raw := q.Get("lowStock"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "lowStock must be a boolean", nil)
			return StockReport{}, false
		}
		lowOnly = parsed
	}
	report, err := h.Svc.Stock(r.Context(), q.Get("q"), lowOnly)
	if err != nil {
		common.WriteError(w, common.Internal(err))
		return StockReport{}, false
	}
	return report, true
}
