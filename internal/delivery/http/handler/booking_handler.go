package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/delivery/http/middleware"
	"telehealth-booking/internal/usecase"
	"telehealth-booking/pkg/response"
	"telehealth-booking/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type BookingHandler struct {
	admissionUsecase    usecase.SlotAdmissionUsecase
	checkoutUsecase     usecase.CheckoutUsecase
	cancellationUsecase usecase.CancellationUsecase
	bookingUsecase      usecase.BookingUsecase
	validator           *validator.CustomValidator
}

func NewBookingHandler(
	admissionUsecase usecase.SlotAdmissionUsecase,
	checkoutUsecase usecase.CheckoutUsecase,
	cancellationUsecase usecase.CancellationUsecase,
	bookingUsecase usecase.BookingUsecase,
	validator *validator.CustomValidator,
) *BookingHandler {
	return &BookingHandler{
		admissionUsecase:    admissionUsecase,
		checkoutUsecase:     checkoutUsecase,
		cancellationUsecase: cancellationUsecase,
		bookingUsecase:      bookingUsecase,
		validator:           validator,
	}
}

func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req dto.SlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	quote, err := h.admissionUsecase.Quote(r.Context(), &req)
	if err != nil {
		if errors.Is(err, usecase.ErrSlotUnavailable) {
			response.Error(w, http.StatusConflict, err.Error(), nil)
			return
		}
		response.InternalServerError(w, "Failed to quote slot")
		return
	}

	response.Success(w, http.StatusOK, "Slot is available", quote)
}

func (h *BookingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	patientID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "User not found in context")
		return
	}

	var req dto.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	checkout, err := h.checkoutUsecase.CreateCheckout(r.Context(), patientID, &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrSlotUnavailable):
			response.Error(w, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, usecase.ErrCheckoutFailed):
			response.Error(w, http.StatusBadGateway, "Payment provider unavailable, please try again", nil)
		default:
			response.InternalServerError(w, "Failed to create checkout")
		}
		return
	}

	response.Success(w, http.StatusCreated, "Checkout created successfully", checkout)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	role, _ := middleware.GetRoleFromContext(r.Context())

	booking, err := h.bookingUsecase.GetBooking(r.Context(), bookingID, userID, role)
	if err != nil {
		switch err {
		case usecase.ErrBookingNotFound:
			response.NotFound(w, "Booking not found")
		case usecase.ErrBookingNotOwned:
			response.Forbidden(w, "You don't have access to this booking")
		default:
			response.InternalServerError(w, "Failed to get booking")
		}
		return
	}

	response.Success(w, http.StatusOK, "Booking retrieved successfully", booking)
}

// GetPaymentStatus handles GET /admin/bookings/{id}/payment
func (h *BookingHandler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	status, err := h.bookingUsecase.GetPaymentStatus(r.Context(), bookingID)
	if err != nil {
		switch err {
		case usecase.ErrBookingNotFound:
			response.NotFound(w, "Booking not found")
		case usecase.ErrPaymentNotFound:
			response.NotFound(w, "Payment not found")
		default:
			response.InternalServerError(w, "Failed to get payment status")
		}
		return
	}

	response.Success(w, http.StatusOK, "Payment status retrieved successfully", status)
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "User not found in context")
		return
	}
	role, _ := middleware.GetRoleFromContext(r.Context())

	// the body is optional
	var req dto.CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	result, err := h.cancellationUsecase.Cancel(r.Context(), bookingID, userID, role, req.Reason)
	if err != nil {
		writeCancellationError(w, result, err)
		return
	}

	response.Success(w, http.StatusOK, "Booking cancelled successfully", result)
}

func (h *BookingHandler) RetryRefund(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid booking ID", nil)
		return
	}

	operatorID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "User not found in context")
		return
	}

	result, err := h.cancellationUsecase.RetryRefund(r.Context(), bookingID, operatorID)
	if err != nil {
		if errors.Is(err, usecase.ErrNoPendingRefund) {
			response.Error(w, http.StatusConflict, "Booking has no pending refund", nil)
			return
		}
		writeCancellationError(w, result, err)
		return
	}

	response.Success(w, http.StatusOK, "Refund completed successfully", result)
}

func writeCancellationError(w http.ResponseWriter, result *dto.CancellationResponse, err error) {
	switch {
	case errors.Is(err, usecase.ErrRefundProviderFailure):
		// cancellation committed, refund awaits an operator retry
		response.JSON(w, http.StatusAccepted, response.Response{
			Success: true,
			Message: "Booking cancelled, refund is pending",
			Data:    result,
		})
	case errors.Is(err, usecase.ErrBookingNotFound):
		response.NotFound(w, "Booking not found")
	case errors.Is(err, usecase.ErrBookingNotOwned):
		response.Forbidden(w, "You are not a party to this booking")
	case errors.Is(err, usecase.ErrBookingNotCancellable):
		response.Error(w, http.StatusConflict, "Only paid bookings can be cancelled", nil)
	case errors.Is(err, usecase.ErrInsufficientBalance):
		response.InternalServerError(w, "Refund could not be reconciled, support has been alerted")
	default:
		response.InternalServerError(w, "Failed to cancel booking")
	}
}
