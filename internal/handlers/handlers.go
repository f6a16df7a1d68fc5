package handlers

import (
	"PresetHub/internal/config"
	"PresetHub/internal/middleware"
	"PresetHub/internal/service"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// Services — сервисный слой, который обслуживает API.
type Services struct {
	Users     *service.UserService
	Presets   *service.PresetService
	Payments  *service.PaymentService
	Purchases *service.PurchaseService
	Downloads *service.DownloadService
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHandler разводящий для хендлеров
func NewHandler(
	svc Services,
	tokens TokenIssuer,
	logger *zap.SugaredLogger,
	cfg *config.Config,
) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	base := responder{Logger: logger, Production: cfg.IsProduction()}

	authHandler := &AuthHandler{responder: base, Users: svc.Users, Tokens: tokens}
	presetHandler := &PresetHandler{responder: base, Presets: svc.Presets}
	paymentHandler := &PaymentHandler{responder: base, Payments: svc.Payments}
	userHandler := &UserHandler{responder: base, Users: svc.Users, Purchases: svc.Purchases}
	downloadHandler := &DownloadHandler{responder: base, Downloads: svc.Downloads}

	general := middleware.GeneralLimit
	general.Requests = cfg.RateLimitAPI
	payment := middleware.PaymentLimit
	payment.Requests = cfg.RateLimitPayment
	download := middleware.DownloadLimit
	download.Requests = cfg.RateLimitDownload

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.WithRecover)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithCORS(cfg.AllowedOrigin))
	r.Use(middleware.WithGzip)
	r.Use(middleware.WithAuth(tokens))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.WithRateLimit(general))

			// Auth routes
			r.Post("/auth/register", authHandler.Register)
			r.Post("/auth/login", authHandler.Login)
			r.With(middleware.RequireAuth).Post("/auth/logout", authHandler.Logout)
			r.With(middleware.RequireAuth).Get("/auth/me", authHandler.Me)
			r.With(middleware.RequireAuth).Post("/auth/change-password", authHandler.ChangePassword)

			// Catalog routes
			r.Get("/presets", presetHandler.List)
			r.Get("/presets/{id}", presetHandler.Get)
			r.Get("/presets/category/{category}", presetHandler.ListByCategory)

			// Payment routes
			r.Post("/payment/webhook", paymentHandler.Webhook)
			r.With(middleware.RequireAuth).Get("/payment/history", paymentHandler.History)

			// User routes
			r.Get("/user/lookup", userHandler.Lookup)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/user/profile", userHandler.Profile)
				r.Put("/user/profile", userHandler.UpdateProfile)
				r.Get("/user/purchases", userHandler.ListPurchases)
				r.Get("/user/owns/{presetId}", userHandler.Owns)
			})

			r.Get("/download/{token}/info", downloadHandler.Info)
		})

		// Checkout: авторизация необязательна, лимит строже общего
		r.Group(func(r chi.Router) {
			r.Use(middleware.WithRateLimit(payment))
			r.Post("/payment/create-order", paymentHandler.CreateOrder)
			r.Post("/payment/verify", paymentHandler.Verify)
		})

		r.With(middleware.WithRateLimit(download)).Get("/download/{token}", downloadHandler.Download)
	})

	return &Handler{Router: r}
}
