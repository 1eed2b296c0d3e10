package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"shop/internal/domain/basket"
	"shop/internal/domain/order"
	"shop/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	checkoutUC    *usecase.CheckoutBasket
	deleteOrderUC *usecase.DeleteOrder
	getOrderUC    *usecase.GetOrder
	getTraceUC    *usecase.GetTrace
}

func NewHandlers(
	checkoutUC *usecase.CheckoutBasket,
	deleteOrderUC *usecase.DeleteOrder,
	getOrderUC *usecase.GetOrder,
	getTraceUC *usecase.GetTrace,
) *Handlers {
	return &Handlers{
		checkoutUC:    checkoutUC,
		deleteOrderUC: deleteOrderUC,
		getOrderUC:    getOrderUC,
		getTraceUC:    getTraceUC,
	}
}

// CheckoutBasket marks the basket checked out and enqueues the fact in
// one transaction. Nothing downstream is awaited; order creation and
// stock adjustment are observable via GET /orders and the trace view.
func (h *Handlers) CheckoutBasket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing basket id", http.StatusBadRequest)
		return
	}

	messageID, err := h.checkoutUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "checked_out",
		"basket_id":  id,
		"message_id": messageID,
	})
}

func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	if err := h.deleteOrderUC.Execute(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"status":   "deleted",
		"order_id": id,
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	dto, err := h.getOrderUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	json.NewEncoder(w).Encode(dto)
}

func (h *Handlers) GetTrace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	trace, err := h.getTraceUC.Execute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	json.NewEncoder(w).Encode(trace)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, basket.ErrNotFound), errors.Is(err, order.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, basket.ErrAlreadyCheckedOut), errors.Is(err, order.ErrAlreadyDeleted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, basket.ErrEmpty):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
