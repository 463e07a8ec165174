package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auctionhouse/internal/auction"
	"auctionhouse/internal/auth"
	"auctionhouse/internal/utils"
)

type Handler struct {
	AuctionService *auction.AuctionService
}

type placeBidRequest struct {
	Amount float64 `json:"amount"`
}

func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", err.Error()))
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request", "invalid request body"))
		return
	}

	bid, err := h.AuctionService.PlaceBid(r.Context(), productID, userID, req.Amount)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("bid placed successfully", bid))
}

func (h *Handler) CancelBid(w http.ResponseWriter, r *http.Request) {
	bidID := chi.URLParam(r, "bidID")

	userID, err := auth.UserIDFromRequest(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("unauthorized", err.Error()))
		return
	}

	if err := h.AuctionService.CancelBid(r.Context(), bidID, userID); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("bid cancelled", nil))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.AuctionService.Stats(r.Context())
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("auction stats", stats))
}
