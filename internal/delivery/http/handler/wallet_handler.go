package handler

import (
	"net/http"

	"telehealth-booking/internal/delivery/http/middleware"
	"telehealth-booking/internal/usecase"
	"telehealth-booking/pkg/response"
)

type WalletHandler struct {
	walletUsecase usecase.WalletUsecase
}

func NewWalletHandler(walletUsecase usecase.WalletUsecase) *WalletHandler {
	return &WalletHandler{
		walletUsecase: walletUsecase,
	}
}

func (h *WalletHandler) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "User not found in context")
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	wallet, err := h.walletUsecase.GetMyBalances(r.Context(), userID, role)
	if err != nil {
		if err == usecase.ErrUnknownWalletOwner {
			response.Forbidden(w, "Your role has no wallet")
			return
		}
		response.InternalServerError(w, "Failed to get wallet")
		return
	}

	response.Success(w, http.StatusOK, "Wallet retrieved successfully", wallet)
}
