package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tlux-store/tlux-api/internal/gateway"
	"github.com/tlux-store/tlux-api/internal/models"
	pkghttp "github.com/tlux-store/tlux-api/pkg/http"
)

// AdminServiceInterface is the operator surface: transaction lookup and
// forced re-fulfillment.
type AdminServiceInterface interface {
	Get(ctx context.Context, reference string) (*models.Transaction, error)
}

// Reprocessor re-runs fulfillment for a reference
type Reprocessor interface {
	Reprocess(ctx context.Context, reference string) (*models.Transaction, error)
}

// OrderStatusQuerier looks up submitted unlock orders at the supplier
type OrderStatusQuerier interface {
	QueryOrder(ctx context.Context, orderRef string) (*gateway.OrderResult, error)
}

// AdminHandler handles operator requests
type AdminHandler struct {
	ledger      AdminServiceInterface
	reprocessor Reprocessor
	orders      OrderStatusQuerier
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ledger AdminServiceInterface, reprocessor Reprocessor, orders OrderStatusQuerier) *AdminHandler {
	return &AdminHandler{ledger: ledger, reprocessor: reprocessor, orders: orders}
}

// TransactionStatusResponse pairs the ledger row with the supplier's view
// of the unlock order, when one exists.
type TransactionStatusResponse struct {
	Transaction     *models.Transaction `json:"transaction"`
	SupplierStatus  string              `json:"supplier_status,omitempty"`
	SupplierMessage string              `json:"supplier_message,omitempty"`
}

// TransactionStatus returns the ledger state for a reference. For unlock
// transactions with a submitted order the supplier status is included
// best-effort.
func (h *AdminHandler) TransactionStatus(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		pkghttp.WriteBadRequest(w, "Missing transaction reference")
		return
	}

	tx, err := h.ledger.Get(r.Context(), reference)
	if err != nil {
		if errors.Is(err, models.ErrUnknownTransaction) {
			pkghttp.WriteNotFound(w, "Unknown transaction reference")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	resp := TransactionStatusResponse{Transaction: tx}
	if tx.Purpose == models.PurposeUnlock && tx.OrderRef != nil {
		if order, err := h.orders.QueryOrder(r.Context(), *tx.OrderRef); err == nil {
			resp.SupplierStatus = order.Status
			resp.SupplierMessage = order.Message
		}
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// Refulfill forces a fulfillment pass for a completed transaction. Safe to
// call on any state: already fulfilled references are a no-op.
func (h *AdminHandler) Refulfill(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		pkghttp.WriteBadRequest(w, "Missing transaction reference")
		return
	}

	tx, err := h.reprocessor.Reprocess(r.Context(), reference)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownTransaction):
			pkghttp.WriteNotFound(w, "Unknown transaction reference")
		case errors.Is(err, models.ErrGatewayUnavailable):
			pkghttp.WriteError(w, http.StatusBadGateway, "gateway_unavailable",
				"Unlock gateway unavailable, transaction remains retriable")
		case errors.Is(err, models.ErrInvalidTransition):
			pkghttp.WriteConflict(w, "Transaction is not in a fulfillable state")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, tx)
}
