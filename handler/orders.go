package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"telegram-shop/model"
	"telegram-shop/service"
)

const (
	msgInvalidOrder   = "Invalid order data"
	msgInternal       = "Internal server error"
	msgPaymentBlocked = "Payment method is not available"
)

type validationErrResp struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

type updateStatusReq struct {
	Status model.Status `json:"status"`
}

// SubmitOrder handles POST /api/orders
// body: OrderDraft JSON; items may be omitted to check out the session cart
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var draft model.OrderDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeErr(w, http.StatusBadRequest, msgInvalidOrder)
		return
	}

	key := sessionKey(h.cfg.CartKey, r)
	unlock := h.lockSession(key)
	defer unlock()

	var cart *service.Cart
	if h.cfg.Features.Cart {
		c, err := h.loadCart(key)
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		cart = c
		if len(draft.Items) == 0 {
			draft.Items = cart.Lines()
		}
	}

	items, total, err := h.priceLines(draft.Items)
	if err != nil {
		writeErr(w, http.StatusBadRequest, msgInvalidOrder)
		return
	}
	draft.Items = items
	draft.Total = total

	if res := service.Validate(draft); !res.Valid {
		writeJSON(w, http.StatusBadRequest, validationErrResp{Error: msgInvalidOrder, Errors: res.Errors})
		return
	}
	if !h.cfg.PaymentAllowed(draft.PaymentMethod) {
		writeErr(w, http.StatusBadRequest, msgPaymentBlocked)
		return
	}

	order, err := h.orders.Submit(draft)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.Orders.Inc()
	}
	logger := log.WithFields(log.Fields{"orderID": order.ID, "total": order.Total, "items": len(order.Items)})
	logger.Info("order submitted")

	// the order is already stored, so the cart is emptied even if a
	// notification below fails
	if cart != nil {
		if err := cart.Clear(); err != nil {
			logger.WithError(err).Warn("failed to clear cart")
		}
	}

	if h.cfg.Features.Notifications && h.notifier != nil {
		if err := h.notifier.NotifyOrder(r.Context(), order); err != nil {
			h.countNotification("failed")
			fields := log.Fields{"orderID": order.ID}
			var derr *service.DeliveryError
			if errors.As(err, &derr) {
				fields["recipient"] = derr.Recipient
				fields["audience"] = derr.Audience.String()
			}
			log.WithError(err).WithFields(fields).Error("order notification failed")
			writeErr(w, http.StatusInternalServerError, msgInternal)
			return
		}
		h.countNotification("sent")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "orderId": order.ID})
}

// priceLines replaces the client's product snapshots with catalog entries,
// so totals are never computed from client-supplied prices. Explicit items
// are held to the same MaxCartItems limit as the session cart.
func (h *Handler) priceLines(lines []model.CartLine) ([]model.CartLine, int64, error) {
	out := make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, 0, model.ErrInvalidQuantity
		}
		p, err := h.catalog.Find(l.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, model.CartLine{Product: p, Quantity: l.Quantity})
	}

	count, err := model.CheckedQuantity(out)
	if err != nil {
		return nil, 0, err
	}
	if h.cfg.MaxCartItems > 0 && count > h.cfg.MaxCartItems {
		return nil, 0, model.ErrCartLimit
	}
	total, err := model.CheckedLinesTotal(out)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (h *Handler) countNotification(result string) {
	if h.metrics != nil {
		h.metrics.Notifications.WithLabelValues(result).Inc()
	}
}

// ListOrders handles GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List()
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Find(mux.Vars(r)["id"])
	if errors.Is(err, model.ErrOrderNotFound) {
		writeErr(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/orders/{id}/status
// body: { "status": "confirmed" }
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	order, err := h.orders.UpdateStatus(mux.Vars(r)["id"], req.Status)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, order)
	case errors.Is(err, model.ErrOrderNotFound):
		writeErr(w, http.StatusNotFound, "order not found")
	case errors.Is(err, model.ErrUnknownStatus), errors.Is(err, model.ErrTransitionNotAllowed):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, r, err)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithError(err).WithFields(log.Fields{
		"method":    r.Method,
		"url":       r.URL.String(),
		"requestID": w.Header().Get(requestIDHeader),
	}).Error("request failed")
	writeErr(w, http.StatusInternalServerError, msgInternal)
}
