package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/internal/order/application"
	"github.com/dmehra2102/checkout-service/pkg/apperr"
	"github.com/dmehra2102/checkout-service/pkg/auth"
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
		tracer:  otel.Tracer("order-http"),
	}
}

// APIRoutes mounts the customer endpoints. mw wraps the checkout write,
// typically with the idempotency middleware.
func (h *Handler) APIRoutes(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.With(mw...).Post("/checkout", h.createOrder)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/status", h.updateStatus)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	var req application.CheckoutRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	o, err := h.service.CreateOrder(ctx, p, req)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID), attribute.String("order.number", o.OrderNumber))
	respond.OK(w, http.StatusCreated, "Order created successfully", o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	id, err := orderID(r)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	o, err := h.service.GetOrder(ctx, p, id)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", o)
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	p, err := auth.MustPrincipal(ctx)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	id, err := orderID(r)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	var req statusReq
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	if req.Status == "" {
		respond.Error(w, h.log, apperr.InvalidField("status", "The status field is required."))
		return
	}

	o, err := h.service.UpdateStatus(ctx, p, id, req.Status)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.OK(w, http.StatusOK, "Order status updated successfully", o)
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("Order")
	}
	return id, nil
}
