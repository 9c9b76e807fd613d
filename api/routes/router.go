package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/localdrop/api/controllers"
	"github.com/angelmondragon/localdrop/api/middleware"
	"github.com/angelmondragon/localdrop/pkg/config"
	"github.com/angelmondragon/localdrop/pkg/db"
	"github.com/angelmondragon/localdrop/pkg/logger"
	"github.com/angelmondragon/localdrop/pkg/redis"
)

// Deps carries the services mounted by the router. Optional entries may be nil.
type Deps struct {
	OTP      controllers.OTPService
	Identity controllers.IdentityProvider
	Redis    *redis.Client
	DB       db.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	sendPolicy := middleware.NewAuthRateLimitPolicy(
		"otp_send",
		cfg.AuthRateLimit.OTPWindow,
		cfg.AuthRateLimit.OTPIPLimit,
		cfg.AuthRateLimit.OTPEmailLimit,
	)
	verifyPolicy := middleware.NewAuthRateLimitPolicy(
		"otp_verify",
		cfg.AuthRateLimit.OTPWindow,
		cfg.AuthRateLimit.OTPIPLimit,
		0,
	)

	readiness := map[string]controllers.Pinger{}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
	}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/otp", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(sendPolicy, limiterFor(deps.Redis), logg)).Post("/send", controllers.OTPSend(deps.OTP, logg))
		r.With(middleware.AuthRateLimit(verifyPolicy, limiterFor(deps.Redis), logg)).Post("/verify", controllers.OTPVerify(deps.OTP, logg))
	})

	r.Route("/api/auth/google", func(r chi.Router) {
		r.Get("/login", controllers.GoogleLogin(deps.Identity, cfg, logg))
		r.Get("/callback", controllers.GoogleCallback(deps.Identity, cfg, logg))
	})

	return r
}

// limiterFor keeps a nil client from becoming a non-nil interface.
func limiterFor(client *redis.Client) middleware.RateLimiterStore {
	if client == nil {
		return nil
	}
	return client
}
