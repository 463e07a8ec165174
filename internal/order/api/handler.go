package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auctionhouse/internal/auth"
	"auctionhouse/internal/order"
	"auctionhouse/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", err.Error()))
		return
	}

	var req order.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "invalid request body"))
		return
	}

	created, err := h.OrderService.CreateOrder(r.Context(), userID, req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("order created successfully", created))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", err.Error()))
		return
	}

	found, err := h.OrderService.GetOrder(r.Context(), orderID, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order", found))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", err.Error()))
		return
	}

	orders, err := h.OrderService.ListOrders(r.Context(), userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("orders", orders))
}

func (h *Handler) RefreshPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", err.Error()))
		return
	}

	refreshed, err := h.OrderService.RefreshPayment(r.Context(), orderID, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment status refreshed", refreshed))
}
