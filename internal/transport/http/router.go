package http

import (
	"net/http"

	"github.com/atelier-api/internal/application/account"
	"github.com/atelier-api/internal/application/onboarding"
	"github.com/atelier-api/internal/application/otp"
	"github.com/atelier-api/internal/application/role"
	"github.com/atelier-api/internal/application/session"
	"github.com/atelier-api/internal/config"
	"github.com/atelier-api/internal/domain"
	"github.com/atelier-api/internal/transport/http/handler"
	appmiddleware "github.com/atelier-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, on every public auth endpoint.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	codes := otp.NewGenerator(cfg.OTPTTL, deps.Now)
	onboardingSvc := onboarding.NewService(onboarding.ServiceDeps{
		AccountRepo:    deps.AccountRepo,
		PendingRepo:    deps.PendingRepo,
		ChallengeRepo:  deps.ChallengeRepo,
		Registrar:      deps.Registrar,
		Media:          deps.Media,
		Materializer:   role.NewMaterializer(deps.Now),
		Codes:          codes,
		JWTProvider:    deps.JWTProvider,
		Dispatcher:     deps.Dispatcher,
		Publisher:      deps.Publisher,
		AllowAdminRole: cfg.AllowAdminRegistration,
		Now:            deps.Now,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		AccountRepo:   deps.AccountRepo,
		ChallengeRepo: deps.ChallengeRepo,
		Codes:         codes,
		JWTProvider:   deps.JWTProvider,
		Dispatcher:    deps.Dispatcher,
		Now:           deps.Now,
	})
	accountSvc := account.NewService(account.ServiceDeps{AccountRepo: deps.AccountRepo})

	cookies := handler.SessionCookies{Secure: cfg.CookieSecure, MaxAge: deps.JWTProvider.Expiry()}
	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(onboardingSvc, sessionSvc, deps.AttemptLimiter, cookies)
	accountH := handler.NewAccountHandler(accountSvc)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(sensitiveRL.Limit)
				r.Post("/register/email", authH.RegisterEmail)
				r.Post("/register/number", authH.RegisterNumber)
				r.Post("/verify/email", authH.VerifyEmail)
				r.Post("/verify/number", authH.VerifyNumber)
				r.Post("/resend-code", authH.ResendCode)
				r.Post("/login/email", authH.LoginEmail)
				r.Post("/login/number", authH.LoginNumber)
				r.Post("/forgot-password", authH.ForgotPassword)
				r.Post("/reset-password", authH.ResetPassword)
			})
			r.Get("/logout", authH.Logout)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.JWTProvider))

			r.Get("/accounts/me", accountH.Me)
			r.Put("/accounts/me/two-factor", accountH.SetTwoFactor)

			r.With(appmiddleware.RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleEmployee)).
				Get("/accounts/{id}", accountH.Get)
		})
	})

	return r
}
