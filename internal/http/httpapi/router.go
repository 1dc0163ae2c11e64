package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"cmo/internal/http/handlers"
	"cmo/internal/middleware"
)

type Options struct {
	Logger             zerolog.Logger
	AllowedOrigins     []string
	RateLimitPerMinute int
	DefaultLanguage    string
	CountryLookup      middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLanguage, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	// Tool calls and enqueues start external work.
	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMinute > 0 {
			r.Use(middleware.RateLimit(opts.RateLimitPerMinute, time.Minute))
		}
		r.Post("/v1/tools/{name}", app.Tool)
		r.Post("/v1/social-batches", app.EnqueueSocialBatch)
	})
	r.Get("/v1/social-batches/{id}", app.GetSocialBatch)

	return r
}
