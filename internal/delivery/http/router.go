package http

import (
	"net/http"

	"telehealth-booking/internal/delivery/http/handler"
	"telehealth-booking/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	router          *mux.Router
	bookingHandler  *handler.BookingHandler
	walletHandler   *handler.WalletHandler
	webhookHandler  *handler.WebhookHandler
	auditLogHandler *handler.AuditLogHandler
	authMiddleware  *middleware.AuthMiddleware
	corsMiddleware  *middleware.CORSMiddleware
}

func NewRouter(
	bookingHandler *handler.BookingHandler,
	walletHandler *handler.WalletHandler,
	webhookHandler *handler.WebhookHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
) *Router {
	return &Router{
		router:          mux.NewRouter(),
		bookingHandler:  bookingHandler,
		walletHandler:   walletHandler,
		webhookHandler:  webhookHandler,
		auditLogHandler: auditLogHandler,
		authMiddleware:  authMiddleware,
		corsMiddleware:  corsMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// Prometheus scrape endpoint
	r.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Payment provider webhooks (public, signature-verified)
	api.HandleFunc("/webhooks/payment", r.webhookHandler.HandlePayment).Methods(http.MethodPost)

	// Patient booking routes
	patient := api.PathPrefix("/bookings").Subrouter()
	patient.Use(r.authMiddleware.Authenticate)
	patient.Use(middleware.RequirePatient)
	patient.HandleFunc("/quote", r.bookingHandler.Quote).Methods(http.MethodPost)
	patient.HandleFunc("/checkout", r.bookingHandler.Checkout).Methods(http.MethodPost)

	// Booking routes shared by both parties
	bookings := api.PathPrefix("/bookings").Subrouter()
	bookings.Use(r.authMiddleware.Authenticate)
	bookings.HandleFunc("/{id}", r.bookingHandler.GetBooking).Methods(http.MethodGet)
	bookings.Handle("/{id}/cancel", middleware.RequireBookingParty(http.HandlerFunc(r.bookingHandler.CancelBooking))).Methods(http.MethodPost)

	// Wallet (any authenticated role)
	wallet := api.PathPrefix("/wallet").Subrouter()
	wallet.Use(r.authMiddleware.Authenticate)
	wallet.HandleFunc("", r.walletHandler.GetMyWallet).Methods(http.MethodGet)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/bookings/{id}/refund-retry", r.bookingHandler.RetryRefund).Methods(http.MethodPost)
	admin.HandleFunc("/bookings/{id}/payment", r.bookingHandler.GetPaymentStatus).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	// Add CORS and latency middleware
	r.router.Use(r.corsMiddleware.Handle)
	r.router.Use(middleware.Metrics)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
