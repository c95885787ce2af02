package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/watchtowerhq/watchtower/internal/api/handlers"
	custommiddleware "github.com/watchtowerhq/watchtower/internal/api/middleware"
	"github.com/watchtowerhq/watchtower/internal/config"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/service"
)

// Services bundles everything the router needs.
type Services struct {
	System    *service.SystemService
	Sampler   *service.SamplerService
	PnL       *service.PnLService
	Peaks     *service.PeakService
	Trades    *service.TradeService
	Ledger    *service.LedgerService
	Snapshots *repository.SnapshotRepository
	Audit     *repository.AuditRepository
}

// NewRouter creates and configures the HTTP router. Mutating endpoints sit
// behind the admin token middleware; read endpoints are open.
func NewRouter(svc Services, cfg *config.Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	adminAuth := custommiddleware.AdminAuth(cfg.Admin.TokenKey, cfg.Admin.TokenTTL)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(svc.System)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/portfolio", func(r chi.Router) {
			portfolioHandler := handlers.NewPortfolioHandler(
				svc.Sampler, svc.PnL, svc.Peaks, svc.Trades, svc.Snapshots)
			r.Get("/summary", portfolioHandler.Summary)
			r.Get("/history", portfolioHandler.History)
			r.With(adminAuth).Post("/sample", portfolioHandler.Sample)
		})

		r.Route("/flows", func(r chi.Router) {
			flowHandler := handlers.NewFlowHandler(svc.Ledger)
			r.Get("/", flowHandler.List)
			r.With(adminAuth).Post("/", flowHandler.Create)
		})

		r.Route("/peak", func(r chi.Router) {
			peakHandler := handlers.NewPeakHandler(svc.Peaks)
			r.Get("/", peakHandler.History)
			r.With(adminAuth).Post("/correct", peakHandler.Correct)
		})

		r.Route("/baseline", func(r chi.Router) {
			baselineHandler := handlers.NewBaselineHandler(svc.PnL)
			r.With(adminAuth).Post("/reset", baselineHandler.Reset)
		})

		r.Route("/audit", func(r chi.Router) {
			auditHandler := handlers.NewAuditHandler(svc.Audit)
			r.Get("/", auditHandler.List)
		})

		r.Route("/trades", func(r chi.Router) {
			tradeHandler := handlers.NewTradeHandler(svc.Trades)
			r.Get("/", tradeHandler.List)
			r.Get("/streak", tradeHandler.Streak)
			r.With(adminAuth).Post("/closed", tradeHandler.Create)
		})

		r.Route("/webhooks", func(r chi.Router) {
			webhookHandler := handlers.NewWebhookHandler(svc.Ledger)
			r.With(adminAuth).Post("/transfers", webhookHandler.Transfers)
		})
	})

	return r
}
