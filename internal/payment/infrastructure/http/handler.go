package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/checkout-service/internal/payment/application"
	"github.com/dmehra2102/checkout-service/internal/payment/domain"
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
		tracer:  otel.Tracer("payment-http"),
	}
}

// APIRoutes mounts the payment endpoints. mw wraps processPayment.
func (h *Handler) APIRoutes(r chi.Router, mw ...func(http.Handler) http.Handler) {
	r.With(mw...).Post("/payment/{orderId}", h.processPayment)
	r.Get("/payment/{orderId}", h.paymentStatus)
	r.Put("/payment/{orderId}", h.updatePaymentStatus)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Put("/orders/{id}/payment-status", h.adminPaymentStatus)
}

func (h *Handler) processPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ProcessPayment")
	defer span.End()

	p, id, ok := h.target(w, r, "orderId")
	if !ok {
		return
	}
	var req application.ProcessRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}

	res, err := h.service.ProcessPayment(ctx, p, id, req)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	span.SetAttributes(attribute.Int64("order.id", id), attribute.String("payment.status", string(res.PaymentStatus)))
	respond.OK(w, http.StatusOK, "Payment processed successfully", res)
}

func (h *Handler) paymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentStatus")
	defer span.End()

	p, id, ok := h.target(w, r, "orderId")
	if !ok {
		return
	}
	o, err := h.service.PaymentStatus(ctx, p, id)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", o)
}

type statusReq struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

func (h *Handler) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "orderId", "status", "Payment status updated")
}

func (h *Handler) adminPaymentStatus(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "id", "payment_status", "Payment status updated successfully")
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, param, field, message string) {
	ctx, span := h.tracer.Start(r.Context(), "UpdatePaymentStatus")
	defer span.End()

	p, id, ok := h.target(w, r, param)
	if !ok {
		return
	}
	if !p.IsAdmin() {
		respond.Error(w, h.log, apperr.Forbidden("Admin access required."))
		return
	}
	var req statusReq
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	status := req.Status
	if field == "payment_status" {
		status = req.PaymentStatus
	}
	if status == "" {
		respond.Error(w, h.log, apperr.InvalidField(field, "The "+field+" field is required."))
		return
	}
	if _, valid := domain.ParseStatus(status); !valid {
		respond.Error(w, h.log, apperr.InvalidField(field, "The selected "+field+" is invalid."))
		return
	}

	pay, err := h.service.UpdatePaymentStatus(ctx, p, id, status)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.OK(w, http.StatusOK, message, pay)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request, param string) (auth.Principal, int64, bool) {
	p, err := auth.MustPrincipal(r.Context())
	if err != nil {
		respond.Error(w, h.log, err)
		return auth.Principal{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, h.log, apperr.NotFound("Order"))
		return auth.Principal{}, 0, false
	}
	return p, id, true
}
