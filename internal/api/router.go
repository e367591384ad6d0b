package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vcontests/vscubing-back/internal/api/handler"
	"github.com/vcontests/vscubing-back/internal/api/middleware"
	"github.com/vcontests/vscubing-back/internal/app/service"
	"github.com/vcontests/vscubing-back/internal/common/security"
)

type Services struct {
	Auth     *service.AuthService
	Solves   *service.SolveService
	Sessions *service.RoundSessionService
	Contests *service.ContestService
}

func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Observe(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Verifies a bearer token when present; routes that need one add
	// middleware.Authenticator.
	r.Use(jwtauth.Verifier(security.TokenAuth))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/auth", handler.NewAuthHandler(svc.Auth).RegisterRoutes)
		v1.Group(handler.NewContestHandler(svc.Contests, svc.Sessions).RegisterRoutes)
		v1.Route("/solves", handler.NewSolveHandler(svc.Solves).RegisterRoutes)
		v1.Route("/ongoing-contest", handler.NewOngoingContestHandler(svc.Solves).RegisterRoutes)
		v1.Route("/admin", handler.NewAdminHandler(svc.Sessions).RegisterRoutes)
	})

	return r
}
