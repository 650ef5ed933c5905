package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/internal/reporting/application"
	"github.com/dmehra2102/checkout-service/pkg/respond"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("reporting-http"),
	}
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)
	r.Get("/orders", h.listOrders)
	r.Get("/orders-export", h.export)
}

type daySales struct {
	Date  string `json:"date"`
	Total string `json:"total"`
}

type dashboardView struct {
	TotalOrders     int                    `json:"total_orders"`
	TotalSales      string                 `json:"total_sales"`
	PendingOrders   int                    `json:"pending_orders"`
	CompletedOrders int                    `json:"completed_orders"`
	FailedOrders    int                    `json:"failed_orders"`
	PaidAmount      string                 `json:"paid_amount"`
	UnpaidAmount    string                 `json:"unpaid_amount"`
	CODPayments     int                    `json:"cod_payments"`
	OnlinePayments  int                    `json:"online_payments"`
	OrdersByStatus  map[string]int         `json:"orders_by_status"`
	SalesByDay      []daySales             `json:"sales_by_day"`
	RecentOrders    []application.OrderRow `json:"recent_orders"`
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Dashboard")
	defer span.End()

	d, err := h.service.Dashboard(ctx)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	sales := make([]daySales, 0, len(d.SalesByDay))
	for _, day := range d.SalesByDay {
		sales = append(sales, daySales{Date: day.Date, Total: day.Total.StringFixed(2)})
	}
	respond.OK(w, http.StatusOK, "", dashboardView{
		TotalOrders:     d.TotalOrders,
		TotalSales:      d.TotalSales.StringFixed(2),
		PendingOrders:   d.PendingOrders,
		CompletedOrders: d.CompletedOrders,
		FailedOrders:    d.FailedOrders,
		PaidAmount:      d.PaidAmount.StringFixed(2),
		UnpaidAmount:    d.UnpaidAmount.StringFixed(2),
		CODPayments:     d.CODPayments,
		OnlinePayments:  d.OnlinePayments,
		OrdersByStatus:  d.OrdersByStatus,
		SalesByDay:      sales,
		RecentOrders:    d.RecentOrders,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	f, err := application.FilterFromQuery(r.URL.Query())
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	res, err := h.service.ListOrders(ctx, f, page)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", res)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ExportOrders")
	defer span.End()

	f, err := application.FilterFromQuery(r.URL.Query())
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, application.ExportFilename(time.Now())))
	w.WriteHeader(http.StatusOK)

	// Headers are already sent, a failure can only be logged.
	if err := h.service.ExportCSV(ctx, f, w); err != nil {
		h.log.Error("orders export aborted", "err", err)
	}
}
