package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"go-user-accounts/internal/config"
	"go-user-accounts/internal/handler"
	"go-user-accounts/internal/middleware"
)

type Handlers struct {
	Auth *handler.AuthHandler
	User *handler.UserHandler
}

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options holds the optional pieces of the router.
type Options struct {
	Health   HealthChecker
	MediaDir string // served under /media/ when set
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, handlers Handlers, opts Options) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", healthHandler(opts.Health))

	if opts.MediaDir != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(middleware.BodyLimit(cfg.MaxJSONBody, cfg.MaxUploadSize))

		users := userRoutes(authMiddleware, handlers)
		api.Mount("/users", users)
		api.Mount("/user", users)
	})

	return r
}

func userRoutes(authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Post("/register", h.Auth.Register)
	r.Post("/login", h.Auth.Login)
	r.Post("/refresh-token", h.Auth.Refresh)

	r.Group(func(secured chi.Router) {
		secured.Use(authMiddleware.RequireAuth)

		secured.Post("/logout", h.Auth.Logout)
		secured.Post("/change-password", h.Auth.ChangePassword)
		secured.Get("/current-user", h.Auth.CurrentUser)
		secured.Patch("/update-account", h.User.UpdateAccount)
		secured.Patch("/avatar", h.User.UpdateAvatar)
		secured.Patch("/cover-image", h.User.UpdateCoverImage)
		secured.Get("/c/{userName}", h.User.Channel)
		secured.Get("/history", h.User.WatchHistory)
	})

	return r
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := checker.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
