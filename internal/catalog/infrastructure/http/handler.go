package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/internal/catalog/application"
	"github.com/dmehra2102/checkout-service/internal/catalog/domain"
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
		tracer:  otel.Tracer("catalog-http"),
	}
}

type listResponse struct {
	Status     bool          `json:"status"`
	Count      int           `json:"count"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
	Data       []domain.Item `json:"data"`
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/items", h.listItems)
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListItems")
	defer span.End()

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	res, err := h.service.List(ctx, r.URL.Query().Get("search"), page)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, listResponse{
		Status:     true,
		Count:      len(res.Items),
		TotalCount: res.Total,
		Limit:      res.Limit,
		Offset:     res.Offset,
		Data:       res.Items,
	})
}
