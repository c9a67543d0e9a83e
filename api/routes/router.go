package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/referralz-backend/api/controllers"
	"github.com/angelmondragon/referralz-backend/api/middleware"
	"github.com/angelmondragon/referralz-backend/internal/referrals"
	"github.com/angelmondragon/referralz-backend/pkg/config"
	"github.com/angelmondragon/referralz-backend/pkg/db"
	"github.com/angelmondragon/referralz-backend/pkg/logger"
	"github.com/angelmondragon/referralz-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	limiter redis.RateLimiter,
	referralService referrals.Service,
	metricsHandler http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	userPolicy := middleware.NewRateLimitPolicy("referrals", cfg.RateLimit.Window, cfg.RateLimit.UserLimit)
	clickPolicy := middleware.NewRateLimitPolicy("referral-clicks", cfg.RateLimit.ClickWindow, cfg.RateLimit.ClickLimit)

	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["postgres"] = dbP
	}
	if redisP != nil {
		readiness["redis"] = redisP
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/public/v1/referrals", func(r chi.Router) {
		r.With(middleware.RateLimit(clickPolicy, limiter, logg)).
			Post("/links/{code}/clicks", controllers.ReferralClick(referralService, logg))
	})

	r.Route("/api/v1/referrals", func(r chi.Router) {
		r.Use(middleware.UserIdentity(logg))
		r.Use(middleware.RateLimit(userPolicy, limiter, logg))
		r.Post("/signups", controllers.ReferralSignup(referralService, logg))
		r.Post("/claims", controllers.ReferralClaim(referralService, logg))
		r.Get("/events", controllers.ListReferralEvents(referralService, logg))
		r.Get("/summary", controllers.ReferralSummary(referralService, logg))
	})

	r.Route("/api/admin/v1/referrals", func(r chi.Router) {
		r.Use(middleware.UserIdentity(logg))
		r.Use(middleware.RequireRole(middleware.RoleAdmin, logg))
		r.Post("/settlements", controllers.AdminRunSettlement(referralService, logg))
	})

	return r
}
